package engine

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := CacheKey("search", "lofi beats", "10")
		k2 := CacheKey("search", "lofi beats", "10")
		if k1 != k2 {
			t.Errorf("CacheKey not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := CacheKey("video", "dQw4w9WgXcQ")
		k2 := CacheKey("video", "9bZkp7q19f0")
		if k1 == k2 {
			t.Errorf("different inputs produced same key: %q", k1)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		k := CacheKey("test")
		if k[:3] != "yt:" {
			t.Errorf("expected yt: prefix, got %q", k[:3])
		}
	})
}

func TestCacheGetSet(t *testing.T) {
	// Init minimal cache (no Redis)
	InitCache("", 1*time.Minute, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "round-trip")

	// Miss
	_, ok := CacheGet(ctx, key)
	if ok {
		t.Error("expected cache miss on empty cache")
	}

	CacheSet(ctx, key, []byte("hello"))

	got, ok := CacheGet(ctx, key)
	if !ok {
		t.Fatal("expected cache hit after set")
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestCacheJSON(t *testing.T) {
	InitCache("", 1*time.Minute, 100, 5*time.Minute)
	ctx := context.Background()
	key := CacheKey("video", "json")

	in := VideoInfo{VideoID: "dQw4w9WgXcQ", Title: "Never Gonna", Qualities: []Quality{{Quality: "720p MP4", Type: "video"}}}
	CacheStoreJSON(ctx, key, in)

	out, ok := CacheLoadJSON[VideoInfo](ctx, key)
	if !ok {
		t.Fatal("expected hit")
	}
	if out.Title != in.Title || len(out.Qualities) != 1 || out.Qualities[0].Quality != "720p MP4" {
		t.Errorf("round trip mismatch: %+v", out)
	}

	CacheSet(ctx, key, []byte("{not json"))
	if _, ok := CacheLoadJSON[VideoInfo](ctx, key); ok {
		t.Error("expected miss on undecodable entry")
	}
}

func TestCacheExpiration(t *testing.T) {
	// Init with very short TTL
	InitCache("", 1*time.Millisecond, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "expiry")

	CacheSet(ctx, key, []byte("temp"))
	time.Sleep(5 * time.Millisecond)

	_, ok := CacheGet(ctx, key)
	if ok {
		t.Error("expected cache miss after TTL expiry")
	}
}

func TestCacheEviction(t *testing.T) {
	// maxEntries=3
	InitCache("", 1*time.Minute, 3, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := CacheKey("evict", fmt.Sprintf("item-%d", i))
		CacheSet(ctx, key, []byte(fmt.Sprintf("v%d", i)))
	}

	count := 0
	resultCache.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 3 {
		t.Errorf("expected at most 3 entries after eviction, got %d", count)
	}
}

func TestCacheStats(t *testing.T) {
	InitCache("", 1*time.Minute, 100, 5*time.Minute)
	// Reset counters
	cacheHits.Store(0)
	cacheMisses.Store(0)

	ctx := context.Background()
	key := CacheKey("stats", "test")

	// Miss
	CacheGet(ctx, key)
	_, misses := CacheStats()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}

	// Set and hit
	CacheSet(ctx, key, []byte("x"))
	CacheGet(ctx, key)

	hits, misses := CacheStats()
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}
