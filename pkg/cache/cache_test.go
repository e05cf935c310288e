package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("options:t1:properties", "v1", time.Second)
	val, ok := c.Get("options:t1:properties")
	if !ok || val != "v1" {
		t.Fatalf("expected v1, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int]()
	c.now = func() time.Time { return now }
	c.Set("k", 1, time.Minute)

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired key to return false")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired key to be evicted on read")
	}
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Second)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[string]()
	c.Set("options:t1:tenants", "a", time.Second)
	c.Set("options:t1:properties", "b", time.Second)
	c.Set("options:t2:tenants", "c", time.Second)
	c.Invalidate("options:t1:")
	_, ok1 := c.Get("options:t1:tenants")
	_, ok2 := c.Get("options:t1:properties")
	_, ok3 := c.Get("options:t2:tenants")
	if ok1 || ok2 {
		t.Fatalf("expected t1 keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected t2 key to still exist")
	}
}
