// Package mirror pushes a downloaded repository snapshot to a blob bucket
// (S3, GCS, or anything gocloud.dev supports), so a verified local copy can
// serve as the source of truth for machines without hub access.
package mirror
