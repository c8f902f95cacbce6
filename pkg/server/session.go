package server

import (
	"time"
)

// Session is one client connection's viewing state: the document it is
// currently bound to (empty until a load succeeds) and when it was last
// active. Records are owned exclusively by the SessionManager; the
// gateway carries only the session ID and reads state through manager
// methods, so the sweep never observes a half-updated record.
type Session struct {
	// ID is the session token handed to the client.
	ID string

	// DocumentPath is the bound document, empty in the Connected state.
	// Once set it always resolves through the document cache: failed
	// loads never bind.
	DocumentPath string

	// CreatedAt is when the connection was established.
	CreatedAt time.Time

	// LastActive is refreshed by every load, page, preload and ping
	// event; it is the sole signal the idle sweep uses.
	LastActive time.Time
}
