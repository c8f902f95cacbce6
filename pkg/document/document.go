package document

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Metadata defaults substituted when the PDF carries no value.
const (
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Unknown"
)

// ErrNotFound is returned when the document file does not exist.
var ErrNotFound = errors.New("document: not found")

// ErrPageOutOfRange is returned for page numbers outside [1, TotalPages].
var ErrPageOutOfRange = errors.New("document: page out of range")

// LoadError wraps a parse failure for a file that exists on disk.
type LoadError struct {
	Path string
	Err  error
}

// Error returns the error message with the offending path.
func (e *LoadError) Error() string {
	return fmt.Sprintf("document: load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Metadata is the document metadata exposed to clients.
type Metadata struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Subject string `json:"subject"`
	Creator string `json:"creator"`
	Pages   int    `json:"pages"`
}

// Document is a parsed PDF: its page count, metadata, and an open MuPDF
// handle usable for repeated random-access page rasterization.
//
// A Document is shared by all sessions viewing the same path and lives for
// the process lifetime once loaded. The MuPDF handle is not safe for
// concurrent use, so Image serializes access with a mutex; two sessions
// rendering from different documents still run in parallel.
type Document struct {
	Path       string
	TotalPages int
	Meta       Metadata

	mu     sync.Mutex
	handle *fitz.Document
}

// Open parses the PDF at path. It returns ErrNotFound if the file is
// missing and a *LoadError if the file exists but cannot be parsed.
func Open(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &LoadError{Path: path, Err: err}
	}

	handle, err := fitz.New(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	total := handle.NumPage()
	meta := handle.Metadata()

	doc := &Document{
		Path:       path,
		TotalPages: total,
		Meta: Metadata{
			Title:   orDefault(meta["title"], DefaultTitle),
			Author:  orDefault(meta["author"], DefaultAuthor),
			Subject: meta["subject"],
			Creator: meta["creator"],
			Pages:   total,
		},
		handle: handle,
	}
	return doc, nil
}

// Image rasterizes the 1-based page pageNum at the given DPI.
// The caller is expected to have validated pageNum against TotalPages;
// out-of-range values still fail with ErrPageOutOfRange rather than
// reaching MuPDF.
func (d *Document) Image(pageNum int, dpi float64) (image.Image, error) {
	if pageNum < 1 || pageNum > d.TotalPages {
		return nil, ErrPageOutOfRange
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// go-fitz pages are 0-based.
	return d.handle.ImageDPI(pageNum-1, dpi)
}

// ValidPage reports whether pageNum is within [1, TotalPages].
func (d *Document) ValidPage(pageNum int) bool {
	return pageNum >= 1 && pageNum <= d.TotalPages
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
