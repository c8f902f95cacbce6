package server

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may stay idle before the
// sweep removes it.
const DefaultIdleTimeout = 30 * time.Minute

// DefaultCleanupInterval is how often the background sweep runs.
const DefaultCleanupInterval = 5 * time.Minute

// SessionManager owns the session table. It is the single source of
// truth for which document a connection is viewing, and its periodic
// sweep is the only path that deletes a session.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTimeout     time.Duration
	cleanupInterval time.Duration

	// onRemoved is invoked (outside the table lock) for every session
	// the sweep removes, so its on-disk artifacts can be deleted.
	onRemoved func(sessionID string)

	totalCreated atomic.Uint64
	totalSwept   atomic.Uint64

	ticker      *time.Ticker
	done        chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once

	logger *slog.Logger
}

// NewSessionManager creates a SessionManager and starts its background
// sweep. Zero durations fall back to the defaults.
func NewSessionManager(idleTimeout, cleanupInterval time.Duration, logger *slog.Logger) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	sm := &SessionManager{
		sessions:        make(map[string]*Session),
		idleTimeout:     idleTimeout,
		cleanupInterval: cleanupInterval,
		done:            make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		logger:          logger.With("component", "session_manager"),
	}

	go sm.cleanupLoop()

	return sm
}

// SetOnSessionRemoved registers a callback run for each swept session.
// Must be called before traffic arrives.
func (sm *SessionManager) SetOnSessionRemoved(fn func(sessionID string)) {
	sm.onRemoved = fn
}

// Create installs a new session with no bound document and returns its
// token. Tokens embed the creation time plus a random suffix and are
// checked against live sessions, so they never collide under connection
// churn.
func (sm *SessionManager) Create() *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var id string
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		id = fmt.Sprintf("session_%d_%s", time.Now().Unix(), suffix)
		if _, exists := sm.sessions[id]; !exists {
			break
		}
	}

	now := time.Now()
	sess := &Session{ID: id, CreatedAt: now, LastActive: now}
	sm.sessions[id] = sess
	sm.totalCreated.Add(1)

	sm.logger.Info("session created", "session_id", id)
	return &Session{ID: sess.ID, CreatedAt: sess.CreatedAt, LastActive: sess.LastActive}
}

// Get returns a copy of the session record.
func (sm *SessionManager) Get(id string) (Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sess, ok := sm.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *sess, nil
}

// Touch refreshes the session's last-activity timestamp.
func (sm *SessionManager) Touch(id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, ok := sm.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastActive = time.Now()
	return nil
}

// BindDocument records a successful document load on the session and
// counts as activity.
func (sm *SessionManager) BindDocument(id, path string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, ok := sm.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.DocumentPath = path
	sess.LastActive = time.Now()
	return nil
}

// Document returns the session's bound document path, or ErrNoDocument
// while the session is still in the Connected state.
func (sm *SessionManager) Document(id string) (string, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sess, ok := sm.sessions[id]
	if !ok {
		return "", ErrSessionNotFound
	}
	if sess.DocumentPath == "" {
		return "", ErrNoDocument
	}
	return sess.DocumentPath, nil
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// TotalCreated returns the number of sessions ever created.
func (sm *SessionManager) TotalCreated() uint64 {
	return sm.totalCreated.Load()
}

// TotalSwept returns the number of sessions the sweep has removed.
func (sm *SessionManager) TotalSwept() uint64 {
	return sm.totalSwept.Load()
}

// SweepIdle removes every session idle longer than timeout and returns
// the removed ids. Expiry is evaluated under the table lock, so a touch
// that lands after the sweep started still saves its session. The
// removal callback runs after the lock is released; a failure inside it
// affects only that session.
func (sm *SessionManager) SweepIdle(timeout time.Duration) []string {
	now := time.Now()

	sm.mu.Lock()
	var removed []string
	for id, sess := range sm.sessions {
		if now.Sub(sess.LastActive) > timeout {
			delete(sm.sessions, id)
			removed = append(removed, id)
		}
	}
	remaining := len(sm.sessions)
	sm.mu.Unlock()

	for _, id := range removed {
		sm.totalSwept.Add(1)
		if sm.onRemoved != nil {
			sm.onRemoved(id)
		}
	}

	if len(removed) > 0 {
		sm.logger.Info("swept idle sessions",
			"count", len(removed),
			"remaining", remaining)
	}
	return removed
}

// cleanupLoop runs the periodic sweep until Shutdown.
func (sm *SessionManager) cleanupLoop() {
	defer close(sm.cleanupDone)

	sm.ticker = time.NewTicker(sm.cleanupInterval)
	defer sm.ticker.Stop()

	for {
		select {
		case <-sm.ticker.C:
			sm.SweepIdle(sm.idleTimeout)
		case <-sm.done:
			return
		}
	}
}

// Shutdown stops the background sweep. Live session records are left in
// place; the process is exiting anyway.
func (sm *SessionManager) Shutdown() {
	sm.stopOnce.Do(func() {
		close(sm.done)
		<-sm.cleanupDone
	})
}
