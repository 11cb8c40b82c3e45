// Package pending holds, per user, the URL of an article whose quote has not arrived yet.
// Entries are in memory only and expire after a fixed TTL.
package pending

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a URL waits for its quote.
const DefaultTTL = 5 * time.Minute

const shardCount = 32

// Entry is a URL waiting for its quote, with whatever metadata was resolved for it.
type Entry struct {
	URL        string
	Title      string
	Author     string
	Domain     string
	CapturedAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[int64]Entry
}

// Cache maps a user to at most one pending Entry. Users are spread over
// independently locked shards; an expired entry is removed by the read that
// finds it, so it is never observed twice.
type Cache struct {
	ttl    time.Duration
	clock  clockwork.Clock
	shards [shardCount]shard
}

// New creates a cache. A non-positive ttl falls back to DefaultTTL and a nil clock to the wall clock.
func New(ttl time.Duration, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Cache{ttl: ttl, clock: clock}
	for i := range c.shards {
		c.shards[i].entries = make(map[int64]Entry)
	}
	return c
}

// TTL returns the configured expiry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) shardFor(userID int64) *shard {
	idx := userID % shardCount
	if idx < 0 {
		idx = -idx
	}
	return &c.shards[idx]
}

// Set stores e for the user, replacing any previous entry. CapturedAt is stamped from the cache clock.
func (c *Cache) Set(userID int64, e Entry) {
	e.CapturedAt = c.clock.Now()
	s := c.shardFor(userID)
	s.mu.Lock()
	s.entries[userID] = e
	s.mu.Unlock()
}

// Get returns the user's entry if it has not expired. An expired entry is deleted.
func (c *Cache) Get(userID int64) (Entry, bool) {
	s := c.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.lookupLocked(s, userID)
}

// Take returns the live entry and removes it in the same critical section.
func (c *Cache) Take(userID int64) (Entry, bool) {
	s := c.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := c.lookupLocked(s, userID)
	if ok {
		delete(s.entries, userID)
	}
	return e, ok
}

// Clear drops the user's entry and reports whether a live one was present.
func (c *Cache) Clear(userID int64) bool {
	s := c.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := c.lookupLocked(s, userID)
	delete(s.entries, userID)
	return ok
}

func (c *Cache) lookupLocked(s *shard, userID int64) (Entry, bool) {
	e, ok := s.entries[userID]
	if !ok {
		return Entry{}, false
	}
	if c.clock.Since(e.CapturedAt) > c.ttl {
		delete(s.entries, userID)
		return Entry{}, false
	}
	return e, true
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
