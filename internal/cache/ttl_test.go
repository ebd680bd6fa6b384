package cache

import (
	"sync"
	"testing"
	"time"
)

func TestTTLCache_Freshness(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(t0)
	c := New[string, int](60*time.Second, clock)

	c.Put("dex_TOKEN1", 42)

	t.Run("just before expiry is a hit", func(t *testing.T) {
		clock.Set(t0.Add(60*time.Second - time.Millisecond))
		v, ok := c.Get("dex_TOKEN1")
		if !ok || v != 42 {
			t.Errorf("Get() = (%d, %v), want (42, true)", v, ok)
		}
	})

	t.Run("exactly at expiry is a miss", func(t *testing.T) {
		clock.Set(t0.Add(60 * time.Second))
		if _, ok := c.Get("dex_TOKEN1"); ok {
			t.Error("entry should be stale at now - fetchedAt == TTL")
		}
	})

	t.Run("just after expiry is a miss", func(t *testing.T) {
		clock.Set(t0.Add(60*time.Second + time.Millisecond))
		if _, ok := c.Get("dex_TOKEN1"); ok {
			t.Error("entry should be stale after TTL")
		}
	})

	t.Run("stale entry is kept until overwritten", func(t *testing.T) {
		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1", c.Len())
		}
		c.Put("dex_TOKEN1", 7)
		v, ok := c.Get("dex_TOKEN1")
		if !ok || v != 7 {
			t.Errorf("Get() after overwrite = (%d, %v), want (7, true)", v, ok)
		}
	})
}

func TestTTLCache_MissingKey(t *testing.T) {
	c := New[string, string](time.Minute, nil)
	v, ok := c.Get("nothing")
	if ok || v != "" {
		t.Errorf("Get() = (%q, %v), want zero miss", v, ok)
	}
	if c.TTL() != time.Minute {
		t.Errorf("TTL() = %v", c.TTL())
	}
}

func TestTTLCache_DefaultTTL(t *testing.T) {
	c := New[string, int](0, nil)
	if c.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", c.TTL(), DefaultTTL)
	}
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Put(j%10, n)
				c.Get(j % 10)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}
