// Package http provides an HTTP client for repository file downloads.
//
// This package handles:
//   - HEAD requests to get file metadata
//   - Open-ended range requests ("bytes=offset-") for resumed downloads
//   - Retry with exponential backoff on transport errors and 5xx
//   - Bearer token authentication
//   - ETag cleaning and Content-Range parsing
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Get file info
//	info, err := client.Head(ctx, url)
//	// info.Size, info.ETag, info.AcceptsRanges
//
//	// Resume from byte 400
//	resp, err := client.Get(ctx, url, 400)
//	defer resp.Body.Close()
//	// resp.Partial reports whether the server honored the range
//
// A response with Partial == false to a ranged request means the server
// ignored the Range header; the caller must discard any local partial data
// before consuming the body, which starts at byte 0.
package http
