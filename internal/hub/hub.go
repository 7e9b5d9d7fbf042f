package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	hfhttp "github.com/JoostHazelzet/download-hf-repo/internal/http"
)

// Common errors.
var (
	// ErrManifestUnavailable wraps any failure to list the repository
	// tree. It is fatal for a run: with no manifest there is nothing to
	// plan against.
	ErrManifestUnavailable = errors.New("hub: repository manifest unavailable")

	// ErrNoPointer is returned when a path has no LFS pointer published,
	// which is normal for small files stored directly in the repository.
	ErrNoPointer = errors.New("hub: no LFS pointer for path")

	// ErrBadRepoID is returned for repository ids not in org/name form.
	ErrBadRepoID = errors.New("hub: repo id must be in 'organization/name' format")
)

// Entry describes one file in a repository manifest. Entries are produced
// once by ListTree and are immutable; directories never appear.
type Entry struct {
	// Path is the slash-separated path relative to the repository root,
	// unique within a manifest.
	Path string

	// Size is the expected file size in bytes. Only meaningful when
	// SizeKnown is true.
	Size int64

	// SizeKnown reports whether the manifest carried a size for this
	// entry.
	SizeKnown bool
}

// Pointer is the parsed content of an LFS pointer file: the authoritative
// checksum and size of the real content.
type Pointer struct {
	SHA256 string
	Size   int64
}

// Client fetches repository metadata from a HuggingFace-style hub.
type Client struct {
	endpoint string
	http     *hfhttp.Client
}

// NewClient creates a hub client. endpoint is the hub base URL without a
// trailing slash, e.g. "https://huggingface.co".
func NewClient(endpoint string, httpClient *hfhttp.Client) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		http:     httpClient,
	}
}

// treeItem mirrors the hub tree API response. The type field is inspected
// exactly once, here, so nothing downstream ever sees a directory.
type treeItem struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size *int64 `json:"size"`
}

// ListTree fetches the full recursive file listing of a repository. The
// returned entries preserve the hub's ordering and contain files only.
func (c *Client) ListTree(ctx context.Context, repoID string) ([]Entry, error) {
	if _, _, err := SplitRepoID(repoID); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/models/%s/tree/main?recursive=true", c.endpoint, repoID)
	data, err := c.http.GetAll(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestUnavailable, repoID, err)
	}

	var items []treeItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: decode tree listing: %v", ErrManifestUnavailable, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item.Type != "file" {
			continue
		}
		e := Entry{Path: item.Path}
		if item.Size != nil && *item.Size >= 0 {
			e.Size = *item.Size
			e.SizeKnown = true
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// FetchPointer retrieves and parses the LFS pointer for one path. Returns
// ErrNoPointer when the raw content is not in pointer format, meaning the
// file is stored directly in the repository.
func (c *Client) FetchPointer(ctx context.Context, repoID, path string) (*Pointer, error) {
	data, err := c.http.GetAll(ctx, c.RawURL(repoID, path))
	if err != nil {
		return nil, fmt.Errorf("fetch pointer for %s: %w", path, err)
	}
	return ParsePointer(data, path)
}

// ParsePointer parses LFS pointer text: a line "oid sha256:<hex>" and a
// line "size <n>". Both must be present.
func ParsePointer(data []byte, path string) (*Pointer, error) {
	if !strings.Contains(string(data), "oid sha256:") {
		return nil, fmt.Errorf("%w: %s", ErrNoPointer, path)
	}

	var p Pointer
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		switch {
		case strings.HasPrefix(line, "oid sha256:"):
			p.SHA256 = strings.TrimPrefix(line, "oid sha256:")
		case strings.HasPrefix(line, "size "):
			n, err := strconv.ParseInt(strings.TrimPrefix(line, "size "), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse pointer size for %s: %w", path, err)
			}
			p.Size = n
		}
	}

	if p.SHA256 == "" || p.Size == 0 {
		return nil, fmt.Errorf("%w: %s: incomplete pointer", ErrNoPointer, path)
	}
	return &p, nil
}

// ResolveURL returns the byte-transfer URL for a repository path.
func (c *Client) ResolveURL(repoID, path string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", c.endpoint, repoID, path)
}

// RawURL returns the raw-content URL for a repository path, which serves
// the LFS pointer text for large files.
func (c *Client) RawURL(repoID, path string) string {
	return fmt.Sprintf("%s/%s/raw/main/%s", c.endpoint, repoID, path)
}

// SplitRepoID splits "organization/name" into its two parts.
func SplitRepoID(repoID string) (org, name string, err error) {
	org, name, ok := strings.Cut(repoID, "/")
	if !ok || org == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadRepoID, repoID)
	}
	return org, name, nil
}

// LocalDir returns the local directory for a repository snapshot:
// {basePath}/models/{org}/{name}.
func LocalDir(basePath, repoID string) (string, error) {
	org, name, err := SplitRepoID(repoID)
	if err != nil {
		return "", err
	}
	return filepath.Join(basePath, "models", org, name), nil
}
