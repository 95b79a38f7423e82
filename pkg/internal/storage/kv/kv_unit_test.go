package kv_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

func TestMemoryKV_TTLExpires(t *testing.T) {
	ctx := context.Background()

	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	if err := store.Set(ctx, "photo:1", []byte("a"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := store.Set(ctx, "photo:2", []byte("b"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, "photo:2")
	if err != nil || string(got) != "b" {
		t.Fatalf("get before expiry = %q, %v", got, err)
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := store.Get(ctx, "photo:2"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after expiry, got %v", err)
	}

	if ok, _ := store.Exists(ctx, "photo:1"); !ok {
		t.Error("key without ttl should not expire")
	}
}

func TestMemoryKV_KeysGlob(t *testing.T) {
	ctx := context.Background()
	store, _ := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)

	for _, k := range []string{"photo:1", "photo:2", "events:1"} {
		_ = store.Set(ctx, k, []byte("x"), 0)
	}

	keys, err := store.Keys(ctx, "photo:*")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}

	sort.Strings(keys)

	if strings.Join(keys, ",") != "photo:1,photo:2" {
		t.Errorf("keys = %v", keys)
	}

	all, _ := store.Keys(ctx, "")
	if len(all) != 3 {
		t.Errorf("all keys = %v", all)
	}
}

func TestGroupcacheKV_DeleteIsVisible(t *testing.T) {
	ctx := context.Background()
	cfg := &configs.GroupcacheKVConfig{Name: "unit-groupcache", CacheBytes: 1 << 20}

	store, err := kv.NewKVStore(ctx, kv.KVTypeGroupcache, cfg)
	if err != nil {
		t.Fatalf("create groupcache kv: %v", err)
	}

	_ = store.Set(ctx, "k", []byte("v1"), 0)
	_ = store.Set(ctx, "k", []byte("v2"), 0)

	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "v2" {
		t.Fatalf("get = %q, %v", got, err)
	}

	_ = store.Delete(ctx, "k")

	if _, err := store.Get(ctx, "k"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestNewKVClient_SelectsBackend(t *testing.T) {
	c, err := kv.NewKVClient(context.Background(), &configs.KVConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("NewKVClient: %v", err)
	}

	if c.Type() != kv.KVTypeMemory {
		t.Errorf("type = %s", c.Type())
	}

	if _, err := kv.NewKVClient(context.Background(), &configs.KVConfig{Type: "etcd"}); err == nil {
		t.Error("unknown type should fail")
	}
}
