// Package cache 在键值存储之上提供泛型缓存，用于照片详情与事件列表.
//
// 键约定：
//
//	photo:<id>           照片详情，默认 24h
//	photo:<id>:events    照片事件列表（升序），默认 5m
//	photo:list:<hash>    列表查询结果，按查询参数的 xxhash 区分
//
// 照片每次写入后调用 EvictPhoto 删除详情与事件键.
//
// 基本用法:
//
//	c := cache.NewCache(kvClient)
//	dto, err := cache.GetOrSet(ctx, c, cache.PhotoKey(id), func() (types.Photo, error) {
//	    return load(id)
//	}, 24*time.Hour)
//
// 值使用 sonic 编码；未命中返回底层存储的 ErrKeyNotFound，GetOrSet 不把未命中视为错误.
// 同一进程内对同一个键的并发 GetOrSet 只会调用一次 getter.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	group   singleflight.Group
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore) *Cache {
	return &Cache{
		kvStore: kvStore,
	}
}

// PhotoKey 照片详情键.
func PhotoKey(id uint) string {
	return "photo:" + strconv.FormatUint(uint64(id), 10)
}

// PhotoEventsKey 照片事件列表键.
func PhotoEventsKey(id uint) string {
	return PhotoKey(id) + ":events"
}

// ListKey 由查询参数生成列表缓存键.
func ListKey(parts ...string) string {
	return fmt.Sprintf("photo:list:%x", xxhash.Sum64String(strings.Join(parts, "\x00")))
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, key, data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, key)
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, key)
}

// GetOrSet 获取缓存值，未命中时调用 getter 并写回；写回失败不影响返回值.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := getter()
		if err != nil {
			return value, err
		}

		_ = Set(ctx, c, key, value, ttl)

		return value, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return v.(T), nil
}

// EvictPhoto 删除照片详情与事件列表缓存.
func (c *Cache) EvictPhoto(ctx context.Context, id uint) error {
	for _, key := range []string{PhotoKey(id), PhotoEventsKey(id)} {
		if err := c.kvStore.Delete(ctx, key); err != nil {
			return fmt.Errorf("evict %s: %w", key, err)
		}
	}

	return nil
}

// Clear 删除匹配 pattern 的全部键，空模式删除全部.
func (c *Cache) Clear(ctx context.Context, pattern string) error {
	keys, err := c.kvStore.Keys(ctx, pattern)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
