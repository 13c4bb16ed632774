package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTTL_GetSet(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[string](time.Minute, clock.Now)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("Get() on empty cache returned ok")
	}

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get() = %q, %v; want %q, true", got, ok, "v")
	}
}

func TestTTL_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[int](5*time.Minute, clock.Now)
	c.Set("k", 1)

	clock.Advance(5*time.Minute - time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("Get() before TTL elapsed returned miss")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("Get() at TTL returned hit")
	}
	if c.Stats().Entries != 0 {
		t.Errorf("Entries = %d, want expired entry dropped", c.Stats().Entries)
	}
}

func TestTTL_ZeroTTLDisablesCaching(t *testing.T) {
	c := New[int](0, nil)
	c.Set("k", 1)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("Get() with zero TTL returned hit")
	}
}

func TestTTL_DeleteAndPrefix(t *testing.T) {
	c := New[int](time.Minute, nil)
	c.Set("clip_1", 1)
	c.Set("clip_2", 2)
	c.Set("clips_all", 3)
	c.Set("category_tree", 4)

	c.Delete("clip_1")
	if _, ok := c.Get("clip_1"); ok {
		t.Errorf("clip_1 still cached after Delete")
	}

	c.DeletePrefix("clip")
	if st := c.Stats(); st.Entries != 1 {
		t.Errorf("Entries = %d, want 1 after DeletePrefix", st.Entries)
	}
	if _, ok := c.Get("category_tree"); !ok {
		t.Errorf("category_tree removed by unrelated prefix")
	}

	c.Clear()
	if st := c.Stats(); st.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after Clear", st.Entries)
	}
}

func TestStats_HitRate(t *testing.T) {
	c := New[int](time.Minute, nil)
	if c.Stats().HitRate() != 0 {
		t.Fatalf("HitRate() before lookups = %v, want 0", c.Stats().HitRate())
	}
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	st := c.Stats()
	if st.Hits != 3 || st.Misses != 1 {
		t.Fatalf("Stats() = %+v, want 3 hits and 1 miss", st)
	}
	if st.HitRate() != 0.75 {
		t.Errorf("HitRate() = %v, want 0.75", st.HitRate())
	}
}
