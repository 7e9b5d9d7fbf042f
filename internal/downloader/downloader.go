package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	hfhttp "github.com/JoostHazelzet/download-hf-repo/internal/http"
	"github.com/JoostHazelzet/download-hf-repo/internal/integrity"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

// Options configures the downloader.
type Options struct {
	// Force restarts every file, ignoring local state.
	Force bool

	// ForceFiles restarts the named repository paths only.
	ForceFiles []string

	// RateLimit throttles transfers, in bytes per second. Zero disables.
	RateLimit int64

	// CheckThreshold is the minimum size for pre-flight integrity checks
	// of complete files, and for per-file progress display.
	// Default: 10 MiB.
	CheckThreshold int64

	// Integrity tunes the corruption heuristics.
	Integrity integrity.Options

	// Reporter is an optional per-file progress reporter.
	Reporter *progress.Reporter

	// Output receives human-readable per-file lines.
	// Default: os.Stderr.
	Output io.Writer

	// Logger receives structured debug logging. Default: no-op.
	Logger *zap.Logger
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	TotalFiles       int
	Succeeded        int
	Outcomes         []Outcome
	Suspicious       []string
	BytesTransferred int64

	// Interrupted is set when the run stopped on context cancellation.
	Interrupted bool
}

// FailedPaths returns the failed paths in manifest order.
func (s *Summary) FailedPaths() []string {
	var paths []string
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			paths = append(paths, o.Path)
		}
	}
	return paths
}

// Failed returns the failed outcomes in manifest order.
func (s *Summary) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			failed = append(failed, o)
		}
	}
	return failed
}

// Downloader fetches the full file set of a repository to local disk,
// resuming partial transfers and detecting corrupted downloads. Files are
// processed sequentially in manifest order; a failure on one file never
// aborts the run.
type Downloader struct {
	hub    *hub.Client
	client *hfhttp.Client
	opts   Options
	out    io.Writer
	log    *zap.Logger

	// sink receives digest progress; Discard when no reporter is set.
	sink progress.Sink
}

// New creates a Downloader.
func New(hubClient *hub.Client, httpClient *hfhttp.Client, opts Options) *Downloader {
	if opts.CheckThreshold <= 0 {
		opts.CheckThreshold = 10 * 1024 * 1024
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var sink progress.Sink = progress.Discard
	if opts.Reporter != nil {
		sink = opts.Reporter
	}
	return &Downloader{
		hub:    hubClient,
		client: httpClient,
		opts:   opts,
		out:    opts.Output,
		log:    opts.Logger,
		sink:   sink,
	}
}

// Run downloads the repository into destDir and returns the run summary.
// Only manifest retrieval failure is fatal; per-file failures are recorded
// in the summary and the run continues. On context cancellation the
// summary collected so far is returned with Interrupted set.
func (d *Downloader) Run(ctx context.Context, repoID, destDir string) (*Summary, error) {
	entries, err := d.hub.ListTree(ctx, repoID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	d.printPreview(entries, destDir)

	verifier := integrity.NewVerifier(d.hub, repoID, d.opts.Integrity, d.log)
	planner := NewPlanner(d.client, d.opts.Force, d.opts.ForceFiles)
	executor := NewExecutor(d.client, d.opts.RateLimit, d.opts.CheckThreshold, d.opts.Reporter, d.log)

	summary := &Summary{TotalFiles: len(entries)}

	for i, entry := range entries {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		url := d.hub.ResolveURL(repoID, entry.Path)
		localPath := filepath.Join(destDir, filepath.FromSlash(entry.Path))

		state, err := ProbeLocal(localPath)
		if err != nil {
			d.log.Warn("probe failed", zap.String("path", entry.Path), zap.Error(err))
			summary.Outcomes = append(summary.Outcomes, Outcome{Path: entry.Path, FailureReason: err.Error()})
			continue
		}

		action := planner.Plan(ctx, entry, state, url)

		// Pre-flight corruption check for large size-complete files. A
		// suspicious verdict is surfaced for reporting only; restarting
		// on a heuristic would risk unbounded re-download loops on
		// false positives.
		if action.Kind == ActionSkip && entry.SizeKnown && entry.Size > d.opts.CheckThreshold {
			report, err := verifier.Check(ctx, localPath, entry.Path, d.sink)
			if err != nil {
				d.log.Warn("integrity check failed", zap.String("path", entry.Path), zap.Error(err))
			} else if report.Verdict.Suspicious() {
				summary.Suspicious = append(summary.Suspicious, entry.Path)
				fmt.Fprintf(d.out, "[hfget] Warning: %s looks corrupted (%s: %s); use -force-files to re-download\n",
					entry.Path, report.Verdict, report.Detail)
			}
		}

		d.printAction(i+1, len(entries), entry, state, action)

		outcome := executor.Execute(ctx, entry, action, url, localPath)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.BytesTransferred += outcome.BytesWritten
		if outcome.Succeeded {
			summary.Succeeded++
		} else {
			fmt.Fprintf(d.out, "[hfget] Failed: %s - %s\n", outcome.Path, outcome.FailureReason)
		}

		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
	}

	return summary, nil
}

// printPreview reports what the run is about to do, before any transfer.
func (d *Downloader) printPreview(entries []hub.Entry, destDir string) {
	var totalSize, remaining int64
	var missing, incomplete int

	for _, entry := range entries {
		if entry.SizeKnown {
			totalSize += entry.Size
		}
		state, err := ProbeLocal(filepath.Join(destDir, filepath.FromSlash(entry.Path)))
		if err != nil {
			continue
		}
		switch {
		case !state.Exists:
			missing++
			if entry.SizeKnown {
				remaining += entry.Size
			}
		case entry.SizeKnown && state.Size != entry.Size:
			incomplete++
			if state.Size < entry.Size {
				remaining += entry.Size - state.Size
			} else {
				remaining += entry.Size
			}
		}
	}

	fmt.Fprintf(d.out, "[hfget] Found %d files (%s total)\n", len(entries), progress.FormatBytes(totalSize))

	if missing == 0 && incomplete == 0 {
		fmt.Fprintf(d.out, "[hfget] All files already exist with correct sizes\n")
		return
	}
	fmt.Fprintf(d.out, "[hfget] Need to download: %d files (%s remaining)\n", missing+incomplete, progress.FormatBytes(remaining))
	if missing > 0 {
		fmt.Fprintf(d.out, "[hfget]   new/missing: %d files\n", missing)
	}
	if incomplete > 0 {
		fmt.Fprintf(d.out, "[hfget]   resume/incomplete: %d files\n", incomplete)
	}
}

// printAction reports one file's planned treatment in the run log.
func (d *Downloader) printAction(i, total int, entry hub.Entry, state LocalState, action Action) {
	prefix := fmt.Sprintf("[hfget] Files %d/%d:", i, total)

	switch action.Kind {
	case ActionSkip:
		fmt.Fprintf(d.out, "%s Skipping %s (already complete)\n", prefix, entry.Path)
	case ActionResume:
		fmt.Fprintf(d.out, "%s Resuming %s (from %s/%s)\n", prefix, entry.Path,
			progress.FormatBytes(action.Offset), progress.FormatBytes(entry.Size))
	case ActionRestart:
		fmt.Fprintf(d.out, "%s Re-downloading %s (%s)\n", prefix, entry.Path, action.Reason)
	case ActionDownload:
		if entry.SizeKnown {
			fmt.Fprintf(d.out, "%s Downloading %s (%s)\n", prefix, entry.Path, progress.FormatBytes(entry.Size))
		} else {
			fmt.Fprintf(d.out, "%s Downloading %s\n", prefix, entry.Path)
		}
	}
}
