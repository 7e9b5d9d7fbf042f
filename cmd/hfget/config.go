package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JoostHazelzet/download-hf-repo/internal/config"
	"github.com/JoostHazelzet/download-hf-repo/internal/downloader"
	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	hfhttp "github.com/JoostHazelzet/download-hf-repo/internal/http"
	"github.com/JoostHazelzet/download-hf-repo/internal/integrity"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

// commonFlags holds the flags shared by every subcommand.
type commonFlags struct {
	configPath *string
	endpoint   *string
	token      *string
	path       *string
	verbose    *bool
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "", "Path to YAML config file"),
		endpoint:   fs.String("endpoint", "", "Hub endpoint (default https://huggingface.co)"),
		token:      fs.String("token", "", "Access token for gated repositories"),
		path:       fs.String("path", "", "Base directory for local snapshots (default .)"),
		verbose:    fs.Bool("verbose", false, "Enable debug logging"),
	}
}

// load merges config sources in precedence order: defaults, config file,
// environment, then explicit flags.
func (f *commonFlags) load() (config.Config, error) {
	cfg := config.Default()

	if *f.configPath != "" {
		loaded, err := config.LoadFromFile(*f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return cfg, err
	}

	if *f.endpoint != "" {
		cfg.Endpoint = *f.endpoint
	}
	if *f.token != "" {
		cfg.Token = *f.token
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (f *commonFlags) logger() *zap.Logger {
	if *f.verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}

func newHTTPClient(cfg config.Config) *hfhttp.Client {
	return hfhttp.NewClient(hfhttp.Options{
		Token:           cfg.Token,
		RetryAttempts:   cfg.Retry.Attempts,
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
	})
}

func newDownloader(cfg config.Config, log *zap.Logger, reporter *progress.Reporter, force bool, forceFiles []string) *downloader.Downloader {
	client := newHTTPClient(cfg)
	hubClient := hub.NewClient(cfg.Endpoint, client)

	return downloader.New(hubClient, client, downloader.Options{
		Force:          force,
		ForceFiles:     forceFiles,
		RateLimit:      cfg.RateLimit,
		CheckThreshold: cfg.Integrity.CheckThreshold,
		Integrity: integrity.Options{
			SampleSize:        cfg.Integrity.SampleSize,
			ZeroFraction:      cfg.Integrity.ZeroFraction,
			TrailingZeroLimit: cfg.Integrity.TrailingZeroLimit,
		},
		Reporter: reporter,
		Logger:   log,
	})
}

// interruptContext cancels on SIGINT or SIGTERM so the active file can be
// cleaned up before exit.
func interruptContext() (ctx context.Context, cancel context.CancelFunc) {
	ctx, cancel = context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[hfget] Received interrupt, shutting down...")
		cancel()
	}()
	return ctx, cancel
}
