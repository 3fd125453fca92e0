package cache

import (
	"testing"
	"time"
)

func TestSet_Get(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Stop()

	c.Set("history:45", "buckets")

	val, ok := c.Get("history:45")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "buckets" {
		t.Errorf("expected 'buckets', got %q", val)
	}
}

func TestGet_Missing(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()

	v, ok := c.Get("nonexistent")
	if ok {
		t.Error("expected false for missing key")
	}
	if v != 0 {
		t.Errorf("expected zero value, got %d", v)
	}
}

func TestGet_Expired(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Stop()

	c.SetWithTTL("old", "data", -time.Second)

	if _, ok := c.Get("old"); ok {
		t.Error("expected false for expired key")
	}
}

func TestSetWithTTL(t *testing.T) {
	c := New[string](time.Hour)
	defer c.Stop()

	c.SetWithTTL("short", "data", 50*time.Millisecond)
	if _, ok := c.Get("short"); !ok {
		t.Fatal("expected key to exist immediately after set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected key to be expired after TTL")
	}
}

func TestDelete(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected key to be deleted")
	}
}

func TestDeletePrefix(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()

	c.Set("history:1", 1)
	c.Set("history:2", 2)
	c.Set("summary:1", 3)

	c.DeletePrefix("history:")

	if c.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", c.Len())
	}
	if _, ok := c.Get("summary:1"); !ok {
		t.Error("unrelated key should survive")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c := New[int](20 * time.Millisecond)
	defer c.Stop()

	c.Set("a", 1)
	time.Sleep(100 * time.Millisecond)

	if n := c.Len(); n != 0 {
		t.Errorf("expected sweep to remove expired entry, %d left", n)
	}
}

func TestStop_Idempotent(t *testing.T) {
	c := New[int](time.Minute)
	c.Stop()
	c.Stop()
}
