package document

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Cache loads documents by path and retains the parsed handle for reuse.
//
// Lookup of an already-loaded path is an O(1) read under an RWMutex.
// A miss installs an in-flight entry before parsing so that concurrent
// loads of the same path wait for one parse instead of duplicating it.
// Entries are never evicted; at the scale this server addresses the
// working set of documents is small and handles are cheap to keep.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	hits   atomic.Uint64
	misses atomic.Uint64

	// open is swapped in tests to avoid touching MuPDF.
	open func(path string) (*Document, error)

	logger *slog.Logger
}

// entry is a cache slot. ready is closed once the load attempt finished;
// doc/err are immutable after that.
type entry struct {
	ready chan struct{}
	doc   *Document
	err   error
}

// NewCache creates an empty document cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		open:    Open,
		logger:  logger.With("component", "document_cache"),
	}
}

// Load returns the document at path, parsing it on first use.
//
// Errors are ErrNotFound for a missing file and *LoadError for an
// unparseable one. Failed loads are not cached: the entry is removed
// before its waiters are released, so a later call retries the parse.
func (c *Cache) Load(ctx context.Context, path string) (*Document, error) {
	key := normalizePath(path)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		// Re-check: another goroutine may have inserted while we upgraded.
		if e, ok = c.entries[key]; !ok {
			e = &entry{ready: make(chan struct{})}
			c.entries[key] = e
			c.mu.Unlock()

			c.misses.Add(1)
			e.doc, e.err = c.open(key)
			if e.err != nil {
				// Drop the failed entry before releasing waiters so no
				// future caller observes a cached failure.
				c.mu.Lock()
				delete(c.entries, key)
				c.mu.Unlock()
				c.logger.Error("document load failed", "path", key, "error", e.err)
			} else {
				c.logger.Info("document loaded",
					"path", key,
					"pages", e.doc.TotalPages)
			}
			close(e.ready)

			return e.doc, e.err
		}
		c.mu.Unlock()
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if e.err != nil {
		return nil, e.err
	}
	c.hits.Add(1)
	return e.doc, nil
}

// Count returns the number of cached documents.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Hits returns the number of loads served from the cache.
func (c *Cache) Hits() uint64 {
	return c.hits.Load()
}

// Misses returns the number of loads that parsed from disk.
func (c *Cache) Misses() uint64 {
	return c.misses.Load()
}

// normalizePath maps the many spellings of a path onto one cache key so
// the cache never holds two entries for the same file.
func normalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
