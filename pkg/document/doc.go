// Package document opens PDF files and caches the parsed handles.
//
// Parsing a multi-megabyte PDF is expensive, so each distinct path is
// parsed exactly once per process and the resulting handle is shared by
// every viewing session that renders pages from it:
//
//	cache := document.NewCache(logger)
//	doc, err := cache.Load(ctx, "pdfs/sample.pdf")
//	img, err := doc.Image(1, 144) // page 1 at 144 DPI
//
// Concurrent Load calls for the same uncached path share a single parse;
// a failed parse is not cached and the next caller retries it.
package document
