package pending

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestCacheSetGet(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	c := New(0, clock)

	if c.TTL() != DefaultTTL {
		t.Fatalf("TTL() = %v, want %v", c.TTL(), DefaultTTL)
	}
	if _, ok := c.Get(1); ok {
		t.Fatal("Get() on empty cache returned an entry")
	}

	c.Set(1, Entry{URL: "https://example.com", Domain: "example.com"})
	got, ok := c.Get(1)
	if !ok || got.URL != "https://example.com" || got.Domain != "example.com" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}
	if !got.CapturedAt.Equal(clock.Now()) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, clock.Now())
	}
	if _, ok := c.Get(2); ok {
		t.Error("entry leaked to another user")
	}

	c.Set(1, Entry{URL: "https://other.example"})
	if got, _ := c.Get(1); got.URL != "https://other.example" {
		t.Errorf("Set() did not overwrite: %+v", got)
	}
}

func TestCacheExpiryClearsEntry(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	c := New(5*time.Minute, clock)
	c.Set(7, Entry{URL: "https://example.com"})

	clock.Advance(5 * time.Minute)
	if _, ok := c.Get(7); !ok {
		t.Fatal("entry expired exactly at the TTL; expiry is strictly after")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get(7); ok {
		t.Fatal("Get() returned an expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry still stored, Len() = %d", c.Len())
	}
	if _, ok := c.Get(7); ok {
		t.Fatal("second Get() after expiry returned an entry")
	}
}

func TestCacheTakeAndClear(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	c := New(time.Minute, clock)

	c.Set(3, Entry{URL: "https://a.example"})
	if e, ok := c.Take(3); !ok || e.URL != "https://a.example" {
		t.Fatalf("Take() = %+v, %v", e, ok)
	}
	if _, ok := c.Take(3); ok {
		t.Error("Take() should remove the entry")
	}

	c.Set(3, Entry{URL: "https://b.example"})
	if !c.Clear(3) {
		t.Error("Clear() of a live entry should report true")
	}
	if c.Clear(3) {
		t.Error("Clear() of a missing entry should report false")
	}

	c.Set(3, Entry{URL: "https://c.example"})
	clock.Advance(2 * time.Minute)
	if c.Clear(3) {
		t.Error("Clear() of an expired entry should report false")
	}
}

func TestCacheNegativeUserIDs(t *testing.T) {
	t.Parallel()
	c := New(time.Minute, clockwork.NewFakeClock())

	// Group chats have negative IDs.
	c.Set(-1001234567890, Entry{URL: "https://group.example"})
	if e, ok := c.Get(-1001234567890); !ok || e.URL != "https://group.example" {
		t.Errorf("Get(negative id) = %+v, %v", e, ok)
	}
}

func TestCacheConcurrentUsers(t *testing.T) {
	t.Parallel()
	c := New(time.Minute, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for user := int64(0); user < 200; user++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c.Set(id, Entry{URL: "https://example.com"})
			if _, ok := c.Get(id); !ok {
				t.Errorf("user %d lost its entry", id)
			}
			c.Take(id)
		}(user)
	}
	wg.Wait()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after every user took its entry", c.Len())
	}
}
