package relay

import "sync"

// CachedResponse is one handler result, keyed by the envelope id it
// answers. Caching results is what bounds handler execution to at most
// once per delivered Pending envelope: a write conflict forces the cycle
// to redo, but the redo reuses the cache instead of re-invoking handlers.
//
// For file responses the minted side-file name is part of the entry, so a
// redo re-uploads (or recognizes) the same name instead of littering the
// store with orphans.
type CachedResponse struct {
	// ID is the envelope id this response answers.
	ID string

	// Kind mirrors Response.Kind.
	Kind ResponseKind

	// Text is the inline text, for text responses.
	Text string

	// FileName is the minted side-file name, for file responses.
	FileName string

	// Data holds the binary payload until the upload succeeds; cleared
	// afterwards so durable caches don't retain payload bytes.
	Data []byte

	// Uploaded records that the side file landed in the store.
	Uploaded bool

	// CreatedAt is milliseconds since epoch, for expiry-based purging.
	CreatedAt int64
}

// ResponseCache stores handler results between write attempts. The
// in-memory implementation below covers a single process lifetime; the
// SQLite journal makes at-most-once hold across restarts too.
type ResponseCache interface {
	// Get returns the cached response for an envelope id, if any.
	Get(id string) (CachedResponse, bool, error)

	// Put stores or replaces the cached response for its id.
	Put(r CachedResponse) error

	// Delete drops the entry for an envelope id. Missing ids are a no-op.
	Delete(id string) error

	// PurgeBefore drops every entry created before cutoff (milliseconds
	// since epoch). Entries for expired envelopes can never be merged,
	// so the listener purges with the expiry cutoff each cycle.
	PurgeBefore(cutoff int64) error
}

// MemoryCache is a map-backed ResponseCache. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]CachedResponse
}

// NewMemoryCache creates an empty in-memory response cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]CachedResponse)}
}

// Get implements ResponseCache.
func (c *MemoryCache) Get(id string) (CachedResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[id]
	return r, ok, nil
}

// Put implements ResponseCache.
func (c *MemoryCache) Put(r CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r.ID] = r
	return nil
}

// Delete implements ResponseCache.
func (c *MemoryCache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

// PurgeBefore implements ResponseCache.
func (c *MemoryCache) PurgeBefore(cutoff int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.entries {
		if r.CreatedAt < cutoff {
			delete(c.entries, id)
		}
	}
	return nil
}

// Len returns the number of cached entries. Used for testing.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
