package downloader

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	"github.com/JoostHazelzet/download-hf-repo/internal/integrity"
)

// FileState classifies one file against the repository manifest.
type FileState int

const (
	StateComplete FileState = iota
	StateMissing
	StateIncomplete
	StateSuspicious
	StateOversized
	StateError
)

func (s FileState) String() string {
	switch s {
	case StateComplete:
		return "complete"
	case StateMissing:
		return "missing"
	case StateIncomplete:
		return "incomplete"
	case StateSuspicious:
		return "suspicious"
	case StateOversized:
		return "oversized"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("FileState(%d)", int(s))
	}
}

// FileStatus is the per-file result of a status scan.
type FileStatus struct {
	Path         string
	State        FileState
	ExpectedSize int64
	SizeKnown    bool
	LocalSize    int64
	Detail       string
}

// StatusReport is the result of scanning local state against the manifest.
type StatusReport struct {
	RepoID string
	Files  []FileStatus
}

// Complete reports whether every file is present and passes its checks.
func (r *StatusReport) Complete() bool {
	for _, f := range r.Files {
		if f.State != StateComplete {
			return false
		}
	}
	return true
}

// ByState returns the paths in the given state, in manifest order.
func (r *StatusReport) ByState(state FileState) []string {
	var paths []string
	for _, f := range r.Files {
		if f.State == state {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Status scans destDir against the repository manifest without
// transferring anything. Files whose size matches and exceeds
// checkThreshold additionally get an integrity check.
func (d *Downloader) Status(ctx context.Context, repoID, destDir string) (*StatusReport, error) {
	entries, err := d.hub.ListTree(ctx, repoID)
	if err != nil {
		return nil, err
	}

	verifier := integrity.NewVerifier(d.hub, repoID, d.opts.Integrity, d.log)

	report := &StatusReport{RepoID: repoID}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Files = append(report.Files, d.fileStatus(ctx, verifier, entry, destDir))
	}
	return report, nil
}

func (d *Downloader) fileStatus(ctx context.Context, verifier *integrity.Verifier, entry hub.Entry, destDir string) FileStatus {
	status := FileStatus{
		Path:         entry.Path,
		ExpectedSize: entry.Size,
		SizeKnown:    entry.SizeKnown,
	}

	localPath := filepath.Join(destDir, filepath.FromSlash(entry.Path))
	state, err := ProbeLocal(localPath)
	if err != nil {
		status.State = StateError
		status.Detail = err.Error()
		return status
	}
	status.LocalSize = state.Size

	switch {
	case !state.Exists:
		status.State = StateMissing
		return status
	case !entry.SizeKnown:
		status.State = StateComplete
		status.Detail = "size unknown, present locally"
		return status
	case state.Size < entry.Size:
		status.State = StateIncomplete
		return status
	case state.Size > entry.Size:
		status.State = StateOversized
		return status
	}

	if entry.Size > d.opts.CheckThreshold {
		rep, err := verifier.Check(ctx, localPath, entry.Path, d.sink)
		if err != nil {
			d.log.Warn("integrity check failed", zap.String("path", entry.Path), zap.Error(err))
			status.State = StateComplete
			status.Detail = "integrity check unavailable"
			return status
		}
		if rep.Verdict.Suspicious() {
			status.State = StateSuspicious
			status.Detail = rep.Detail
			return status
		}
		status.Detail = rep.Verdict.String()
	}

	status.State = StateComplete
	return status
}
