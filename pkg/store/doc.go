// Package store persists rendered page bitmaps per viewing session.
//
// A Store is a side-effecting sink: it writes a page under a
// session-scoped, page-deterministic name and returns a reference the
// HTTP surface can later resolve back to the bytes. Re-rendering a page
// overwrites the prior copy (later render always supersedes).
//
// DiskStore is the default backend. S3Store uploads pages to a bucket
// and hands out presigned URLs instead of local paths.
package store
