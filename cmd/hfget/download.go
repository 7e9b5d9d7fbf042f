package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)

	common := registerCommon(fs)
	force := fs.Bool("force", false, "Re-download every file, ignoring local state")
	forceFiles := fs.String("force-files", "", "Comma-separated repository paths to re-download")
	rateLimit := fs.String("rate-limit", "", "Transfer rate limit, e.g. 10MB (per second)")
	showProgress := fs.Bool("progress", true, "Show per-file progress for large files")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: hfget download [options] <org/model>

Download a model repository to {path}/models/{org}/{model}. Partial files
from an interrupted run are resumed; complete files are skipped, so the
command is safe to re-run until everything is present.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one repository id is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	repoID := fs.Arg(0)

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if *rateLimit != "" {
		limit, err := progress.ParseBytes(*rateLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid rate limit: %v\n", err)
			return ExitInvalidArgs
		}
		cfg.RateLimit = limit
	}

	destDir, err := hub.LocalDir(cfg.ResolveBasePath(*common.path), repoID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	var files []string
	if *forceFiles != "" {
		for _, f := range strings.Split(*forceFiles, ",") {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
	}

	var reporter *progress.Reporter
	if *showProgress {
		reporter = progress.NewReporter(progress.Options{})
	}

	log := common.logger()
	defer log.Sync()

	d := newDownloader(cfg, log, reporter, *force || cfg.Force, files)

	ctx, cancel := interruptContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "[hfget] Downloading %s to %s\n", repoID, destDir)

	summary, err := d.Run(ctx, repoID, destDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitManifestError
	}

	fmt.Fprintf(os.Stderr, "[hfget] Done: %d/%d files, %s transferred\n",
		summary.Succeeded, summary.TotalFiles, progress.FormatBytes(summary.BytesTransferred))

	for _, path := range summary.Suspicious {
		fmt.Fprintf(os.Stderr, "[hfget] Suspicious: %s (re-download with -force-files=%s)\n", path, path)
	}

	if failed := summary.FailedPaths(); len(failed) > 0 {
		fmt.Fprintf(os.Stderr, "[hfget] %d files failed; run again to retry:\n", len(failed))
		for _, path := range failed {
			fmt.Fprintf(os.Stderr, "[hfget]   %s\n", path)
		}
		return ExitDownloadFailed
	}
	if summary.Interrupted {
		fmt.Fprintln(os.Stderr, "[hfget] Interrupted; run again to resume")
		return ExitGeneralError
	}
	return ExitSuccess
}
