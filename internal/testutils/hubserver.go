// Package testutils provides shared test infrastructure, including a fake
// hub server for unit tests and container helpers for integration tests.
package testutils

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// PatternData returns size bytes of a deterministic repeating pattern.
// Corruption and resume tests rely on the content being predictable at
// any offset.
func PatternData(size int64) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// HubFile describes one file served by the fake hub.
type HubFile struct {
	Path string
	Data []byte

	// LFS serves a pointer document at the raw endpoint instead of the data.
	LFS bool

	// OmitSize leaves the size out of the tree listing.
	OmitSize bool

	// NoRange makes the resolve endpoint ignore Range headers and always
	// answer 200 with the full body.
	NoRange bool

	// Gone lists the file in the tree but answers 404 on resolve.
	Gone bool
}

// FakeHub is an in-process stand-in for a model hub. It serves the tree
// listing API, file content with range support, and raw LFS pointers,
// and records every request it receives.
type FakeHub struct {
	Server *httptest.Server

	repoID string
	files  map[string]HubFile
	order  []string

	mu       sync.Mutex
	requests []string
}

// StartFakeHub starts a fake hub serving the given repository.
// The server shuts down with the test.
func StartFakeHub(t *testing.T, repoID string, files []HubFile) *FakeHub {
	t.Helper()

	h := &FakeHub{
		repoID: repoID,
		files:  make(map[string]HubFile, len(files)),
	}
	for _, f := range files {
		h.files[f.Path] = f
		h.order = append(h.order, f.Path)
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.Server.Close)
	return h
}

// URL returns the fake hub's base endpoint.
func (h *FakeHub) URL() string {
	return h.Server.URL
}

// Requests returns all requests seen so far as "METHOD path" strings.
func (h *FakeHub) Requests() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

// ContentRequests counts GET requests against the resolve endpoint for
// the given file path.
func (h *FakeHub) ContentRequests(path string) int {
	target := fmt.Sprintf("GET /%s/resolve/main/%s", h.repoID, path)
	count := 0
	for _, r := range h.Requests() {
		if r == target {
			count++
		}
	}
	return count
}

func (h *FakeHub) record(r *http.Request) {
	h.mu.Lock()
	h.requests = append(h.requests, r.Method+" "+r.URL.Path)
	h.mu.Unlock()
}

func (h *FakeHub) handle(w http.ResponseWriter, r *http.Request) {
	h.record(r)

	treePath := fmt.Sprintf("/api/models/%s/tree/main", h.repoID)
	resolvePrefix := fmt.Sprintf("/%s/resolve/main/", h.repoID)
	rawPrefix := fmt.Sprintf("/%s/raw/main/", h.repoID)

	switch {
	case r.URL.Path == treePath:
		h.serveTree(w)
	case strings.HasPrefix(r.URL.Path, resolvePrefix):
		h.serveContent(w, r, strings.TrimPrefix(r.URL.Path, resolvePrefix))
	case strings.HasPrefix(r.URL.Path, rawPrefix):
		h.serveRaw(w, r, strings.TrimPrefix(r.URL.Path, rawPrefix))
	default:
		http.NotFound(w, r)
	}
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size *int64 `json:"size,omitempty"`
}

func (h *FakeHub) serveTree(w http.ResponseWriter) {
	var entries []treeEntry

	// Directory entries exercise the caller's type filtering.
	seen := make(map[string]bool)
	for _, path := range h.order {
		if dir, _, ok := strings.Cut(path, "/"); ok && !seen[dir] {
			seen[dir] = true
			entries = append(entries, treeEntry{Type: "directory", Path: dir})
		}
	}
	for _, path := range h.order {
		f := h.files[path]
		e := treeEntry{Type: "file", Path: path}
		if !f.OmitSize {
			size := int64(len(f.Data))
			e.Size = &size
		}
		entries = append(entries, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *FakeHub) serveContent(w http.ResponseWriter, r *http.Request, path string) {
	f, ok := h.files[path]
	if !ok || f.Gone {
		http.NotFound(w, r)
		return
	}
	size := int64(len(f.Data))

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || f.NoRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Write(f.Data)
		return
	}

	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	startStr, endStr, _ := strings.Cut(spec, "-")
	start, _ := strconv.ParseInt(startStr, 10, 64)
	end := size - 1
	if endStr != "" {
		end, _ = strconv.ParseInt(endStr, 10, 64)
		if end >= size {
			end = size - 1
		}
	}
	if start > end {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(f.Data[start : end+1])
}

func (h *FakeHub) serveRaw(w http.ResponseWriter, r *http.Request, path string) {
	f, ok := h.files[path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if f.LFS {
		sum := sha256.Sum256(f.Data)
		fmt.Fprintf(w, "version https://git-lfs.github.com/spec/v1\noid sha256:%x\nsize %d\n", sum, len(f.Data))
		return
	}
	w.Write(f.Data)
}
