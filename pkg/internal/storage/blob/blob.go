// Package blob 定义统一的对象存储能力，并提供 MinIO、AWS S3 与本地文件系统三种后端.
//
// 后端在启动时按名称通过工厂注册表选择，再由 NewResilient 包装熔断与重试：
//
//	raw, err := blob.New(ctx, configs.StorageMinIO, &cfg.Storage)
//	store := blob.NewResilient(raw, registry)
//	url, err := store.Upload(ctx, "photos/u/1/a.jpg", r, "image/jpeg", size)
//
// 所有后端错误都以 *errs.StorageFailure 返回；对象不存在时包装 errs.ErrObjectNotFound.
package blob

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/errs"
)

// 操作名称，用于错误、日志与指标.
const (
	OpUpload   = "upload"
	OpDownload = "download"
	OpDelete   = "delete"
	OpExists   = "exists"
	OpPresign  = "presign"
	OpMetadata = "metadata"
	OpPing     = "ping"
)

// ObjectMeta 对象元数据.
type ObjectMeta struct {
	Key          string            `json:"key"`
	ContentType  string            `json:"content_type"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag"`
	LastModified time.Time         `json:"last_modified"`
	UserTags     map[string]string `json:"user_tags,omitempty"`
}

// Storage 对象存储能力.
type Storage interface {
	// Upload 写入对象并返回访问地址.
	Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (string, error)
	// Download 返回对象内容，调用方负责关闭.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除对象，返回对象此前是否存在.
	Delete(ctx context.Context, key string) (bool, error)
	// Exists 报告对象是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// Presign 返回限时访问地址.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Metadata 返回对象元数据.
	Metadata(ctx context.Context, key string) (*ObjectMeta, error)
	// Provider 返回后端名称.
	Provider() string
}

// Pinger 可选的健康检查能力.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Factory 后端构造函数.
type Factory func(ctx context.Context, cfg *configs.StorageConfig) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.StorageProvider]Factory{}
)

// RegisterFactory 注册后端工厂.
func RegisterFactory(name configs.StorageProvider, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[name] = f
}

// Registered 返回已注册的后端名称.
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, string(name))
	}

	sort.Strings(out)

	return out
}

// New 按名称创建后端.
func New(ctx context.Context, name configs.StorageProvider, cfg *configs.StorageConfig) (Storage, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported storage provider: %s", name)
	}

	return f(ctx, cfg)
}

// failure 构造 StorageFailure.
func failure(provider, op string, err error) error {
	return &errs.StorageFailure{Provider: provider, Operation: op, Err: err}
}

// notFound 构造对象不存在的 StorageFailure.
func notFound(provider, op, key string) error {
	return &errs.StorageFailure{Provider: provider, Operation: op, Err: fmt.Errorf("%s: %w", key, errs.ErrObjectNotFound)}
}
