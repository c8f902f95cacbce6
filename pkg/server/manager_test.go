package server

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSessionManagerCreate(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	sess := sm.Create()
	if sess.ID == "" {
		t.Fatal("Create() returned an empty session ID")
	}
	if sess.DocumentPath != "" {
		t.Error("new session should have no bound document")
	}
	if sess.LastActive.IsZero() {
		t.Error("LastActive should be set")
	}
	if sm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", sm.Count())
	}
	if sm.TotalCreated() != 1 {
		t.Errorf("TotalCreated() = %d, want 1", sm.TotalCreated())
	}
}

func TestSessionManagerCreateUniqueIDs(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := sm.Create().ID
		if seen[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		seen[id] = true
	}
}

func TestSessionManagerGetNotFound(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	if _, err := sm.Get("session_0_nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if err := sm.Touch("session_0_nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Touch() error = %v, want ErrSessionNotFound", err)
	}
	if err := sm.BindDocument("session_0_nope", "x.pdf"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("BindDocument() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionManagerBindAndDocument(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	sess := sm.Create()

	if _, err := sm.Document(sess.ID); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Document() before bind error = %v, want ErrNoDocument", err)
	}

	if err := sm.BindDocument(sess.ID, "/docs/sample.pdf"); err != nil {
		t.Fatalf("BindDocument() error = %v", err)
	}
	path, err := sm.Document(sess.ID)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if path != "/docs/sample.pdf" {
		t.Errorf("Document() = %q, want /docs/sample.pdf", path)
	}
}

func TestSweepIdleRemovesOnlyExpired(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	stale := sm.Create()
	fresh := sm.Create()

	// Age the stale session past the timeout.
	sm.mu.Lock()
	sm.sessions[stale.ID].LastActive = time.Now().Add(-time.Hour)
	sm.mu.Unlock()

	removed := sm.SweepIdle(30 * time.Minute)
	if len(removed) != 1 || removed[0] != stale.ID {
		t.Fatalf("SweepIdle() = %v, want [%s]", removed, stale.ID)
	}
	if _, err := sm.Get(stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("stale session should be removed")
	}
	if _, err := sm.Get(fresh.ID); err != nil {
		t.Errorf("fresh session should survive, got %v", err)
	}
	if sm.TotalSwept() != 1 {
		t.Errorf("TotalSwept() = %d, want 1", sm.TotalSwept())
	}
}

func TestSweepIdleSparesTouchedSession(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	sess := sm.Create()
	sm.mu.Lock()
	sm.sessions[sess.ID].LastActive = time.Now().Add(-time.Hour)
	sm.mu.Unlock()

	// A touch before the sweep reads the record must save it.
	if err := sm.Touch(sess.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if removed := sm.SweepIdle(30 * time.Minute); len(removed) != 0 {
		t.Errorf("SweepIdle() = %v, want none after touch", removed)
	}
}

func TestSweepIdleInvokesCallback(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	var mu sync.Mutex
	var cleaned []string
	sm.SetOnSessionRemoved(func(id string) {
		mu.Lock()
		cleaned = append(cleaned, id)
		mu.Unlock()
	})

	sess := sm.Create()
	sm.mu.Lock()
	sm.sessions[sess.ID].LastActive = time.Now().Add(-time.Hour)
	sm.mu.Unlock()

	sm.SweepIdle(time.Minute)

	mu.Lock()
	defer mu.Unlock()
	if len(cleaned) != 1 || cleaned[0] != sess.ID {
		t.Errorf("callback received %v, want [%s]", cleaned, sess.ID)
	}
}

func TestSweepIdleConcurrentWithTraffic(t *testing.T) {
	sm := NewSessionManager(0, 0, testLogger())
	defer sm.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sess := sm.Create()
				sm.Touch(sess.ID)
				sm.BindDocument(sess.ID, "x.pdf")
				sm.SweepIdle(time.Hour)
			}
		}()
	}
	wg.Wait()

	// Nothing was idle for an hour, so everything survives.
	if got := sm.Count(); got != 400 {
		t.Errorf("Count() = %d, want 400", got)
	}
}

func TestShutdownStopsCleanupLoop(t *testing.T) {
	sm := NewSessionManager(time.Minute, 10*time.Millisecond, testLogger())
	sm.Shutdown()

	select {
	case <-sm.cleanupDone:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine did not exit")
	}

	// Second Shutdown is a no-op, not a panic.
	sm.Shutdown()
}

func TestCleanupLoopSweeps(t *testing.T) {
	sm := NewSessionManager(10*time.Millisecond, 20*time.Millisecond, testLogger())
	defer sm.Shutdown()

	sess := sm.Create()
	sm.mu.Lock()
	sm.sessions[sess.ID].LastActive = time.Now().Add(-time.Hour)
	sm.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sm.Count() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("background loop never swept the idle session")
}
