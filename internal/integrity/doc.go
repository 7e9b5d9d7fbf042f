// Package integrity classifies the health of size-complete local files.
//
// Verification is two-tier. When the hub publishes an LFS pointer for the
// path, the authoritative size is compared first (cheap), then the local
// file is streamed through SHA-256 in 64 KiB chunks (expensive). When no
// pointer is available, a statistical fallback samples three windows of the
// file and flags it when the zero-byte fraction or the trailing zero run
// exceed configured limits.
//
// A Report is a point-in-time judgement, recomputed on demand and never
// persisted. The heuristic is approximate: a Suspicious verdict is surfaced
// for reporting, it never triggers an automatic re-download.
package integrity
