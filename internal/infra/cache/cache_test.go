package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("csrf", "token-1")
	val, ok := c.Get("csrf")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "token-1" {
		t.Errorf("expected 'token-1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("summary:v1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("summary:v1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_DeleteAndPurge(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected key to be deleted")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatal("expected cache to remain usable after Close")
	}
}
