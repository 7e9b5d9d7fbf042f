// Package hub fetches repository metadata from a HuggingFace-style hub.
//
// Three endpoints are involved:
//   - tree API: recursive file listing with paths and sizes (the manifest)
//   - raw: pointer text for LFS-backed files ("oid sha256:<hex>", "size <n>")
//   - resolve: the byte-transfer endpoint honoring Range requests
//
// ListTree is the only place that inspects entry types; directories are
// filtered at this boundary so downstream components only ever see files.
package hub
