package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and gateway error conditions.
var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrNoDocument is returned when a page is requested before any
	// document was bound to the session.
	ErrNoDocument = errors.New("server: no document loaded")

	// ErrInvalidPDFID is returned for document ids that are not a plain
	// file stem (path separators, dot-dot and the like).
	ErrInvalidPDFID = errors.New("server: invalid pdf id")
)

// PageRangeError reports a page number outside the document's bounds.
type PageRangeError struct {
	PageNum    int
	TotalPages int
}

// Error returns the error message.
func (e *PageRangeError) Error() string {
	return fmt.Sprintf("server: page %d out of range (1-%d)", e.PageNum, e.TotalPages)
}

// SessionError wraps an error with session context for logging.
type SessionError struct {
	SessionID string
	Op        string
	Err       error
}

// Error returns the error message with session context.
func (e *SessionError) Error() string {
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}
