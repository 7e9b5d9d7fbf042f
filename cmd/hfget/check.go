package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/JoostHazelzet/download-hf-repo/internal/downloader"
	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	common := registerCommon(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: hfget check [options] <org/model>

Compare the local snapshot against the repository manifest without
downloading anything. Size-complete files above the check threshold are
additionally verified by checksum or the zero-byte heuristic.

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

	destDir, err := hub.LocalDir(cfg.ResolveBasePath(*common.path), repoID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	log := common.logger()
	defer log.Sync()

	d := newDownloader(cfg, log, nil, false, nil)

	ctx, cancel := interruptContext()
	defer cancel()

	report, err := d.Status(ctx, repoID, destDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitManifestError
	}

	printReport(os.Stdout, report)

	if !report.Complete() {
		printRemediation(repoID, report)
		return ExitCheckFailed
	}
	fmt.Fprintln(os.Stderr, "[hfget] All files complete")
	return ExitSuccess
}

// printReport writes one line per file, sorted by path so the table
// reads the same regardless of manifest order.
func printReport(w io.Writer, report *downloader.StatusReport) {
	files := make([]downloader.FileStatus, len(report.Files))
	copy(files, report.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	for _, f := range files {
		line := fmt.Sprintf("%-12s %10s  %s", f.State, sizeColumn(f), f.Path)
		if f.Detail != "" {
			line += " (" + f.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func sizeColumn(f downloader.FileStatus) string {
	if !f.SizeKnown {
		return "?"
	}
	if f.State == downloader.StateIncomplete {
		return fmt.Sprintf("%s/%s", progress.FormatBytes(f.LocalSize), progress.FormatBytes(f.ExpectedSize))
	}
	return progress.FormatBytes(f.ExpectedSize)
}

// printRemediation suggests the command that fixes what the scan found.
func printRemediation(repoID string, report *downloader.StatusReport) {
	missing := report.ByState(downloader.StateMissing)
	incomplete := report.ByState(downloader.StateIncomplete)
	if len(missing)+len(incomplete) > 0 {
		fmt.Fprintf(os.Stderr, "[hfget] %d missing, %d incomplete; fix with:\n", len(missing), len(incomplete))
		fmt.Fprintf(os.Stderr, "[hfget]   hfget download %s\n", repoID)
	}

	var broken []string
	broken = append(broken, report.ByState(downloader.StateSuspicious)...)
	broken = append(broken, report.ByState(downloader.StateOversized)...)
	if len(broken) > 0 {
		fmt.Fprintf(os.Stderr, "[hfget] %d files look corrupted; fix with:\n", len(broken))
		fmt.Fprintf(os.Stderr, "[hfget]   hfget download -force-files=%s %s\n", strings.Join(broken, ","), repoID)
	}
}
