package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JoostHazelzet/download-hf-repo/internal/hub"
	hfhttp "github.com/JoostHazelzet/download-hf-repo/internal/http"
)

// fakeProber answers HEAD probes with a fixed size or error.
type fakeProber struct {
	size  int64
	err   error
	calls int
}

func (p *fakeProber) Head(ctx context.Context, url string) (*hfhttp.FileInfo, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &hfhttp.FileInfo{Size: p.size}, nil
}

func sizedEntry(path string, size int64) hub.Entry {
	return hub.Entry{Path: path, Size: size, SizeKnown: true}
}

func TestPlanMissingFile(t *testing.T) {
	p := NewPlanner(&fakeProber{}, false, nil)
	action := p.Plan(context.Background(), sizedEntry("a.bin", 100), LocalState{}, "")
	if action.Kind != ActionDownload {
		t.Errorf("got %v, want download", action.Kind)
	}
}

func TestPlanMissingFileForced(t *testing.T) {
	// Force never turns a plain download into a restart.
	p := NewPlanner(&fakeProber{}, true, nil)
	action := p.Plan(context.Background(), sizedEntry("a.bin", 100), LocalState{}, "")
	if action.Kind != ActionDownload {
		t.Errorf("got %v, want download", action.Kind)
	}
}

func TestPlanForcedExistingFile(t *testing.T) {
	p := NewPlanner(&fakeProber{}, true, nil)
	state := LocalState{Exists: true, Size: 100}
	action := p.Plan(context.Background(), sizedEntry("a.bin", 100), state, "")
	if action.Kind != ActionRestart {
		t.Errorf("got %v, want restart", action.Kind)
	}
}

func TestPlanForceFilesTargetsOnlyNamedPaths(t *testing.T) {
	p := NewPlanner(&fakeProber{}, false, []string{"a.bin"})
	state := LocalState{Exists: true, Size: 100}

	if got := p.Plan(context.Background(), sizedEntry("a.bin", 100), state, "").Kind; got != ActionRestart {
		t.Errorf("named path: got %v, want restart", got)
	}
	if got := p.Plan(context.Background(), sizedEntry("b.bin", 100), state, "").Kind; got != ActionSkip {
		t.Errorf("other path: got %v, want skip", got)
	}
}

func TestPlanSizeMatch(t *testing.T) {
	p := NewPlanner(&fakeProber{}, false, nil)
	state := LocalState{Exists: true, Size: 100}
	action := p.Plan(context.Background(), sizedEntry("a.bin", 100), state, "")
	if action.Kind != ActionSkip {
		t.Errorf("got %v, want skip", action.Kind)
	}
}

func TestPlanSmallerLocalResumes(t *testing.T) {
	p := NewPlanner(&fakeProber{}, false, nil)
	state := LocalState{Exists: true, Size: 40}
	action := p.Plan(context.Background(), sizedEntry("a.bin", 100), state, "")
	if action.Kind != ActionResume {
		t.Fatalf("got %v, want resume", action.Kind)
	}
	if action.Offset != 40 {
		t.Errorf("offset = %d, want 40", action.Offset)
	}
}

func TestPlanLargerLocalRestarts(t *testing.T) {
	p := NewPlanner(&fakeProber{}, false, nil)
	state := LocalState{Exists: true, Size: 150}
	action := p.Plan(context.Background(), sizedEntry("a.bin", 100), state, "")
	if action.Kind != ActionRestart {
		t.Errorf("got %v, want restart", action.Kind)
	}
}

func TestPlanUnknownSizeProbeMatch(t *testing.T) {
	prober := &fakeProber{size: 100}
	p := NewPlanner(prober, false, nil)
	entry := hub.Entry{Path: "a.bin"}
	state := LocalState{Exists: true, Size: 100}

	action := p.Plan(context.Background(), entry, state, "http://x/a.bin")
	if action.Kind != ActionSkip {
		t.Errorf("got %v, want skip", action.Kind)
	}
	if prober.calls != 1 {
		t.Errorf("probe called %d times, want 1", prober.calls)
	}
}

func TestPlanUnknownSizeProbeMismatch(t *testing.T) {
	p := NewPlanner(&fakeProber{size: 200}, false, nil)
	entry := hub.Entry{Path: "a.bin"}
	state := LocalState{Exists: true, Size: 100}

	action := p.Plan(context.Background(), entry, state, "http://x/a.bin")
	if action.Kind != ActionRestart {
		t.Errorf("got %v, want restart", action.Kind)
	}
}

func TestPlanUnknownSizeProbeFailure(t *testing.T) {
	p := NewPlanner(&fakeProber{err: errors.New("boom")}, false, nil)
	entry := hub.Entry{Path: "a.bin"}
	state := LocalState{Exists: true, Size: 100}

	action := p.Plan(context.Background(), entry, state, "http://x/a.bin")
	if action.Kind != ActionRestart {
		t.Errorf("got %v, want restart when the probe fails", action.Kind)
	}
}

func TestPlanUnknownSizeSkipsProbeForMissingFile(t *testing.T) {
	prober := &fakeProber{size: 100}
	p := NewPlanner(prober, false, nil)
	entry := hub.Entry{Path: "a.bin"}

	action := p.Plan(context.Background(), entry, LocalState{}, "http://x/a.bin")
	if action.Kind != ActionDownload {
		t.Errorf("got %v, want download", action.Kind)
	}
	if prober.calls != 0 {
		t.Errorf("probe called %d times for a missing file, want 0", prober.calls)
	}
}

func TestProbeLocal(t *testing.T) {
	dir := t.TempDir()

	state, err := ProbeLocal(filepath.Join(dir, "absent.bin"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if state.Exists {
		t.Error("missing file reported as existing")
	}

	path := filepath.Join(dir, "present.bin")
	if err := os.WriteFile(path, []byte("abcde"), 0644); err != nil {
		t.Fatal(err)
	}
	state, err = ProbeLocal(path)
	if err != nil {
		t.Fatalf("existing file: %v", err)
	}
	if !state.Exists || state.Size != 5 {
		t.Errorf("state = %+v, want exists with size 5", state)
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	state, err = ProbeLocal(empty)
	if err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if !state.Exists || state.Size != 0 {
		t.Errorf("state = %+v, want exists with size 0", state)
	}

	if _, err := ProbeLocal(dir); err == nil {
		t.Error("directory at file path should be an error")
	}
}
