package kv_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// backends 返回可用的后端；redis 与 nats 需通过环境变量显式开启.
func backends(tb testing.TB) map[string]kv.KVStore {
	tb.Helper()

	ctx := context.Background()
	out := map[string]kv.KVStore{}

	mem, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	if err != nil {
		tb.Fatalf("memory kv: %v", err)
	}

	out["memory"] = mem

	gc, err := kv.NewKVStore(ctx, kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{
		Name:       fmt.Sprintf("contract-%s", tb.Name()),
		CacheBytes: 8 << 20,
	})
	if err != nil {
		tb.Fatalf("groupcache kv: %v", err)
	}

	out["groupcache"] = gc

	if addr := os.Getenv("PHOTOVAULT_TEST_REDIS"); addr != "" {
		store, err := kv.NewKVStore(ctx, kv.KVTypeRedis, &configs.RedisKVConfig{Addr: addr, KeyPrefix: "pvtest:"})
		if err != nil {
			tb.Fatalf("redis kv: %v", err)
		}

		out["redis"] = store
	}

	if url := os.Getenv("PHOTOVAULT_TEST_NATS"); url != "" {
		store, err := kv.NewKVStore(ctx, kv.KVTypeNATS, &configs.NATSKVConfig{URL: url, Bucket: "pvtest"})
		if err != nil {
			tb.Fatalf("nats kv: %v", err)
		}

		out["nats"] = store
	}

	tb.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})

	return out
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := "photo:42"
			if err := store.Set(ctx, key, []byte(`{"id":42}`), 0); err != nil {
				t.Fatalf("set: %v", err)
			}

			got, err := store.Get(ctx, key)
			if err != nil || string(got) != `{"id":42}` {
				t.Fatalf("get = %q, %v", got, err)
			}

			got[0] = 'X'
			if again, _ := store.Get(ctx, key); string(again) != `{"id":42}` {
				t.Errorf("returned slice aliases stored value: %q", again)
			}

			if ok, err := store.Exists(ctx, key); err != nil || !ok {
				t.Errorf("exists = %v, %v", ok, err)
			}

			_ = store.Set(ctx, "photo:42:events", []byte("[]"), 0)

			keys, err := store.Keys(ctx, "photo:42*")
			if err != nil {
				t.Fatalf("keys: %v", err)
			}

			sort.Strings(keys)

			if len(keys) != 2 || keys[0] != "photo:42" || keys[1] != "photo:42:events" {
				t.Errorf("keys = %v", keys)
			}

			if err := store.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}

			if _, err := store.Get(ctx, key); !errors.Is(err, kv.ErrKeyNotFound) {
				t.Errorf("get after delete = %v, want ErrKeyNotFound", err)
			}

			if err := store.Delete(ctx, "photo:missing"); err != nil {
				t.Errorf("deleting a missing key = %v", err)
			}

			_ = store.Delete(ctx, "photo:42:events")
		})
	}
}

func TestStoreContract_ShortTTL(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "photo:list:ttl", []byte("page"), 100*time.Millisecond); err != nil {
				t.Fatalf("set: %v", err)
			}

			time.Sleep(250 * time.Millisecond)

			if ok, _ := store.Exists(ctx, "photo:list:ttl"); ok {
				t.Error("key still visible after ttl")
			}
		})
	}
}

// BenchmarkPhotoCache 模拟详情缓存的写入、命中与失效.
func BenchmarkPhotoCache(b *testing.B) {
	ctx := context.Background()
	payload := make([]byte, 2048)

	for name, store := range backends(b) {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; b.Loop(); i++ {
				key := fmt.Sprintf("photo:%d", i%1024)

				if err := store.Set(ctx, key, payload, time.Minute); err != nil {
					b.Fatalf("set: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete: %v", err)
				}
			}
		})
	}
}
