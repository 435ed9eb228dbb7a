package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("valid capacity", func(t *testing.T) {
		c := New(100, 0)
		if c == nil {
			t.Fatal("expected non-nil cache")
		}
		if c.capacity != 100 {
			t.Errorf("expected capacity 100, got %d", c.capacity)
		}
		if c.ttl != 0 {
			t.Errorf("expected ttl 0, got %v", c.ttl)
		}
	})

	t.Run("zero capacity uses default", func(t *testing.T) {
		c := New(0, 0)
		if c.capacity != 1024 {
			t.Errorf("expected default capacity 1024, got %d", c.capacity)
		}
	})

	t.Run("negative capacity uses default", func(t *testing.T) {
		c := New(-1, 0)
		if c.capacity != 1024 {
			t.Errorf("expected default capacity 1024, got %d", c.capacity)
		}
	})

	t.Run("with ttl starts cleanup goroutine", func(t *testing.T) {
		c := New(100, 100*time.Millisecond)
		if c.cleanupStop == nil {
			t.Error("expected cleanup goroutine to be started")
		}
		c.Close()
	})

	t.Run("without ttl no cleanup goroutine", func(t *testing.T) {
		c := New(100, 0)
		if c.cleanupStop != nil {
			t.Error("expected no cleanup goroutine when ttl is 0")
		}
	})
}

func TestGetSet(t *testing.T) {
	c := New(10, 0)
	defer c.Close()

	t.Run("set and get", func(t *testing.T) {
		c.Set("key1", []byte("value1"))
		val, ok := c.Get("key1")
		if !ok {
			t.Fatal("expected key1 to be found")
		}
		if !bytes.Equal(val, []byte("value1")) {
			t.Errorf("expected value1, got %q", val)
		}
	})

	t.Run("get non-existent key", func(t *testing.T) {
		_, ok := c.Get("nonexistent")
		if ok {
			t.Error("expected key to not be found")
		}
	})

	t.Run("update existing key", func(t *testing.T) {
		c.Set("key2", []byte("value2"))
		c.Set("key2", []byte("value2-updated"))
		val, ok := c.Get("key2")
		if !ok {
			t.Fatal("expected key2 to be found")
		}
		if !bytes.Equal(val, []byte("value2-updated")) {
			t.Errorf("expected value2-updated, got %q", val)
		}
	})
}

func TestCopySemantics(t *testing.T) {
	c := New(10, 0)
	defer c.Close()

	src := []byte("original")
	c.Set("key", src)
	src[0] = 'X'

	got, ok := c.Get("key")
	if !ok {
		t.Fatal("expected key to be found")
	}
	if !bytes.Equal(got, []byte("original")) {
		t.Errorf("caller mutation leaked into the cache: %q", got)
	}

	got[0] = 'Y'
	again, _ := c.Get("key")
	if !bytes.Equal(again, []byte("original")) {
		t.Errorf("returned slice mutation leaked into the cache: %q", again)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(3, 0)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	// Touch "a" so "b" becomes the oldest.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be found")
	}
	c.Set("d", []byte("4"))

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %s to survive eviction", key)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", c.Stats().Evictions)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 20*time.Millisecond)
	defer c.Close()

	c.Set("key", []byte("value"))
	if _, ok := c.Get("key"); !ok {
		t.Fatal("expected key before expiry")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("expected key to expire")
	}
	if c.Stats().Expired == 0 {
		t.Error("expected expired counter to advance")
	}
}

func TestDelete(t *testing.T) {
	c := New(10, 0)
	defer c.Close()

	c.Set("key", []byte("value"))
	c.Delete("key")
	if _, ok := c.Get("key"); ok {
		t.Error("expected key to be deleted")
	}
	// Deleting again is a no-op.
	c.Delete("key")
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got size %d", c.Size())
	}
}

func TestStats(t *testing.T) {
	c := New(10, 0)
	defer c.Close()

	c.Set("key", []byte("value"))
	c.Get("key")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.Size != 1 {
		t.Errorf("expected size 1, got %d", stats.Size)
	}
	if stats.Capacity != 10 {
		t.Errorf("expected capacity 10, got %d", stats.Capacity)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(128, 0)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("w%d-k%d", worker, j%16)
				c.Set(key, []byte(key))
				if val, ok := c.Get(key); ok && !bytes.Equal(val, []byte(key)) {
					t.Errorf("corrupted value for %s: %q", key, val)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(10, 50*time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
