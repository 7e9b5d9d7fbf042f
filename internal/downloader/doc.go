// Package downloader mirrors a hosted model repository to local disk.
//
// A run lists the repository manifest, compares each file against local
// state, and decides per file whether to skip, resume, restart, or
// download fresh. Decisions are made before any bytes move and do not
// change mid-transfer. Local file sizes are the only resume state; no
// sidecar metadata is written, so completeness is recomputed from disk
// on every run.
package downloader
