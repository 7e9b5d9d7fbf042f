package downloader

import (
	"fmt"
	"os"
)

// LocalState describes what is on disk for one manifest path. It is derived
// fresh each run and never persisted; completeness is always recomputed
// against the manifest.
type LocalState struct {
	Path   string // absolute local path
	Exists bool
	Size   int64
}

// ProbeLocal inspects the local filesystem for one file. It never mutates
// anything. A missing file and an existing zero-byte file are distinct
// states: the latter surfaces as Empty from the verifier instead of being
// silently skipped.
func ProbeLocal(path string) (LocalState, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return LocalState{Path: path}, nil
	}
	if err != nil {
		return LocalState{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return LocalState{}, fmt.Errorf("local path %s is a directory", path)
	}
	return LocalState{Path: path, Exists: true, Size: fi.Size()}, nil
}
