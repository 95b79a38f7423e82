package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// cachedPhoto 测试用的照片摘要.
type cachedPhoto struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("memory kv: %v", err)
	}

	return cache.NewCache(store)
}

func TestKeys(t *testing.T) {
	if got := cache.PhotoKey(42); got != "photo:42" {
		t.Errorf("PhotoKey = %s", got)
	}

	if got := cache.PhotoEventsKey(42); got != "photo:42:events" {
		t.Errorf("PhotoEventsKey = %s", got)
	}

	if cache.ListKey("alice", "", "0", "20") != cache.ListKey("alice", "", "0", "20") {
		t.Error("ListKey not deterministic")
	}

	if cache.ListKey("alice", "0") == cache.ListKey("alice0") {
		t.Error("ListKey must separate parts")
	}
}

func TestCache_SetGet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if _, err := cache.Get[cachedPhoto](ctx, c, cache.PhotoKey(1)); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("miss err = %v, want ErrKeyNotFound", err)
	}

	want := cachedPhoto{ID: 1, Status: "COMPLETED"}
	if err := cache.Set(ctx, c, cache.PhotoKey(1), want, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get[cachedPhoto](ctx, c, cache.PhotoKey(1))
	if err != nil || got != want {
		t.Errorf("Get = %+v, %v", got, err)
	}
}

func TestGetOrSet_CallsGetterOnce(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var calls atomic.Int32

	release := make(chan struct{})
	getter := func() (cachedPhoto, error) {
		calls.Add(1)
		<-release

		return cachedPhoto{ID: 5, Status: "UPLOADED"}, nil
	}

	var wg sync.WaitGroup

	results := make([]cachedPhoto, 8)
	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], _ = cache.GetOrSet(ctx, c, cache.PhotoKey(5), getter, time.Hour)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("getter called %d times", n)
	}

	for _, r := range results {
		if r.ID != 5 {
			t.Errorf("result = %+v", r)
		}
	}

	if _, err := cache.GetOrSet(ctx, c, cache.PhotoKey(5), getter, time.Hour); err != nil || calls.Load() != 1 {
		t.Errorf("cached value not reused: calls=%d err=%v", calls.Load(), err)
	}
}

func TestGetOrSet_GetterError(t *testing.T) {
	c := newCache(t)

	_, err := cache.GetOrSet(context.Background(), c, "k", func() (cachedPhoto, error) {
		return cachedPhoto{}, errors.New("db down")
	}, 0)
	if err == nil || err.Error() != "db down" {
		t.Errorf("err = %v", err)
	}

	if ok, _ := c.Exists(context.Background(), "k"); ok {
		t.Error("failed getter result was cached")
	}
}

func TestEvictPhoto(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, c, cache.PhotoKey(9), cachedPhoto{ID: 9}, 0)
	_ = cache.Set(ctx, c, cache.PhotoEventsKey(9), []string{"PHOTO_UPLOADED"}, 0)
	_ = cache.Set(ctx, c, cache.PhotoKey(10), cachedPhoto{ID: 10}, 0)

	if err := c.EvictPhoto(ctx, 9); err != nil {
		t.Fatalf("EvictPhoto: %v", err)
	}

	for _, key := range []string{cache.PhotoKey(9), cache.PhotoEventsKey(9)} {
		if ok, _ := c.Exists(ctx, key); ok {
			t.Errorf("%s still cached", key)
		}
	}

	if ok, _ := c.Exists(ctx, cache.PhotoKey(10)); !ok {
		t.Error("unrelated photo evicted")
	}
}

func TestCache_ClearPattern(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, c, cache.ListKey("a"), []int{1}, 0)
	_ = cache.Set(ctx, c, cache.ListKey("b"), []int{2}, 0)
	_ = cache.Set(ctx, c, cache.PhotoKey(1), cachedPhoto{ID: 1}, 0)

	if err := c.Clear(ctx, "photo:list:*"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if ok, _ := c.Exists(ctx, cache.ListKey("a")); ok {
		t.Error("list key survived clear")
	}

	if ok, _ := c.Exists(ctx, cache.PhotoKey(1)); !ok {
		t.Error("photo key removed by list clear")
	}
}
