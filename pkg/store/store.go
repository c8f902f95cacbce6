package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested page file doesn't exist.
var ErrNotFound = errors.New("store: file not found")

// ErrInvalidName is returned for session IDs or filenames that would
// escape the storage area.
var ErrInvalidName = errors.New("store: invalid name")

// Store is the interface for page persistence backends.
type Store interface {
	// Save persists one rendered page for a session and returns a
	// reference a retrieval endpoint can resolve. Saving the same page
	// again replaces the prior copy.
	Save(ctx context.Context, sessionID string, pageNum int, data []byte) (ref string, err error)

	// Remove deletes a session's entire storage area.
	// Removing a session that has no area is not an error.
	Remove(ctx context.Context, sessionID string) error
}

// PageFilename returns the deterministic filename for a page,
// matching the references Save hands out.
func PageFilename(pageNum int) string {
	return fmt.Sprintf("page_%d.png", pageNum)
}
