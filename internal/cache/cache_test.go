package cache

import (
	"errors"
	"testing"
	"time"
)

func TestCacheManager_GetSetDelete(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	cacheManager.Set("trending:7", []string{"Large Language Models"}, time.Minute)

	cached, found := cacheManager.Get("trending:7")
	if !found {
		t.Fatal("Expected to find cached value")
	}
	if topics, ok := cached.([]string); !ok || topics[0] != "Large Language Models" {
		t.Errorf("Unexpected cached value %v", cached)
	}

	cacheManager.Delete("trending:7")
	if _, found := cacheManager.Get("trending:7"); found {
		t.Error("Expected cached value to be deleted")
	}
}

func TestCacheManager_GetOrLoad(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	for i := 0; i < 3; i++ {
		v, err := cacheManager.GetOrLoad("stats", time.Minute, load)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if v.(int) != 1 {
			t.Errorf("Expected memoized value 1, got %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("Expected a single load, got %d", calls)
	}

	cacheManager.Invalidate()
	v, _ := cacheManager.GetOrLoad("stats", time.Minute, load)
	if v.(int) != 2 {
		t.Errorf("Expected reload after invalidation, got %v", v)
	}
}

func TestCacheManager_GetOrLoadError(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)
	boom := errors.New("boom")

	if _, err := cacheManager.GetOrLoad("stats", time.Minute, func() (interface{}, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("Expected load error, got %v", err)
	}
	if cacheManager.ItemCount() != 0 {
		t.Error("Expected failed loads not to be cached")
	}
}

func TestCacheManager_InvalidateDuringLoad(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	v, _ := cacheManager.GetOrLoad("trending:7", time.Minute, func() (interface{}, error) {
		// A write lands while the aggregate is being computed.
		cacheManager.Invalidate()
		return "stale", nil
	})
	if v != "stale" {
		t.Errorf("Expected the loaded value to be returned, got %v", v)
	}
	if _, found := cacheManager.Get("trending:7"); found {
		t.Error("Expected a result computed before invalidation not to be cached")
	}
}

func TestCacheManager_Flush(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	cacheManager.Set("key1", "value1", 15*time.Minute)
	cacheManager.Set("key2", "value2", 15*time.Minute)
	if cacheManager.ItemCount() != 2 {
		t.Errorf("Expected 2 items, got %d", cacheManager.ItemCount())
	}

	cacheManager.Flush()

	if _, found := cacheManager.Get("key1"); found {
		t.Error("Expected key1 to be flushed")
	}
	if _, found := cacheManager.Get("key2"); found {
		t.Error("Expected key2 to be flushed")
	}
}
