package downloader

import (
	"context"
	"fmt"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	hfhttp "github.com/JoostHazelzet/download-hf-repo/internal/http"
)

// ActionKind enumerates what to do with one file.
type ActionKind int

const (
	// ActionDownload fetches the whole file; nothing usable is on disk.
	ActionDownload ActionKind = iota

	// ActionSkip leaves the local file alone; no I/O happens.
	ActionSkip

	// ActionResume appends the remaining byte range to the local file.
	ActionResume

	// ActionRestart deletes the local file before downloading fresh.
	ActionRestart
)

func (k ActionKind) String() string {
	switch k {
	case ActionDownload:
		return "download"
	case ActionSkip:
		return "skip"
	case ActionResume:
		return "resume"
	case ActionRestart:
		return "restart"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is the planned treatment of one manifest entry. It is computed
// before any byte is transferred and never changes mid-transfer.
type Action struct {
	Kind ActionKind

	// Offset is the resume offset; only meaningful for ActionResume.
	Offset int64

	// Reason documents why a restart was chosen.
	Reason string
}

// HeadProber issues a HEAD request against a URL. *http.Client implements it.
type HeadProber interface {
	Head(ctx context.Context, url string) (*hfhttp.FileInfo, error)
}

// Planner decides the per-file action from the manifest entry and the
// probed local state.
type Planner struct {
	head HeadProber

	// Force restarts every file regardless of local state.
	Force bool

	// ForceFiles restarts the named repository paths.
	ForceFiles map[string]bool
}

// NewPlanner creates a Planner. head is only consulted for entries whose
// manifest size is unknown.
func NewPlanner(head HeadProber, force bool, forceFiles []string) *Planner {
	set := make(map[string]bool, len(forceFiles))
	for _, p := range forceFiles {
		set[p] = true
	}
	return &Planner{head: head, Force: force, ForceFiles: set}
}

// Plan computes the action for one entry. url is the byte-transfer URL,
// used for the HEAD probe when the manifest carries no size.
func (p *Planner) Plan(ctx context.Context, entry hub.Entry, state LocalState, url string) Action {
	forced := p.Force || p.ForceFiles[entry.Path]

	if !state.Exists {
		// A forced download of a missing file is still just a download.
		return Action{Kind: ActionDownload}
	}

	if forced {
		return Action{Kind: ActionRestart, Reason: "forced re-download"}
	}

	if !entry.SizeKnown {
		// No authoritative size: ask the server. An unverifiable local
		// file is restarted rather than silently trusted.
		info, err := p.head.Head(ctx, url)
		if err != nil {
			return Action{Kind: ActionRestart, Reason: fmt.Sprintf("size probe failed: %v", err)}
		}
		if info.Size == state.Size {
			return Action{Kind: ActionSkip}
		}
		return Action{Kind: ActionRestart, Reason: fmt.Sprintf("size probe mismatch: local %d, remote %d", state.Size, info.Size)}
	}

	switch {
	case state.Size == entry.Size:
		return Action{Kind: ActionSkip}
	case state.Size < entry.Size:
		return Action{Kind: ActionResume, Offset: state.Size}
	default:
		// A local file larger than the manifest size is corrupt by
		// definition, never "more complete".
		return Action{Kind: ActionRestart, Reason: fmt.Sprintf("local file larger than expected: %d > %d", state.Size, entry.Size)}
	}
}
