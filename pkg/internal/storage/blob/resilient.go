package blob

import (
	"context"
	"io"
	"time"

	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/metrics"
)

// Resilient 为任意后端加上熔断与重试，熔断器与重试预算按后端名称隔离.
//
// 重试包在熔断之外；Exists 只经过熔断不重试；Upload 仅在 reader 可 Seek 时重试.
type Resilient struct {
	next    Storage
	breaker *resilience.Breaker
	retrier resilience.Retrier
}

// BreakerName 返回后端对应的熔断器名称.
func BreakerName(provider string) string {
	return "storage-" + provider
}

// NewResilient 包装后端.
func NewResilient(next Storage, reg *resilience.Registry) *Resilient {
	name := BreakerName(next.Provider())

	return &Resilient{
		next:    next,
		breaker: reg.Breaker(name),
		retrier: reg.Retrier(name),
	}
}

// Provider 返回被包装后端的名称.
func (s *Resilient) Provider() string { return s.next.Provider() }

// Unwrap 返回被包装的后端.
func (s *Resilient) Unwrap() Storage { return s.next }

// Breaker 返回该后端的熔断器.
func (s *Resilient) Breaker() *resilience.Breaker { return s.breaker }

// Upload 写入对象.
func (s *Resilient) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (string, error) {
	seeker, rewindable := r.(io.Seeker)
	attempt := 0

	url, err := resilience.Retry(ctx, s.retrier, OpUpload, func(ctx context.Context) (string, error) {
		attempt++
		if attempt > 1 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return "", resilience.Permanent(failure(s.Provider(), OpUpload, err))
			}
		}

		url, err := resilience.Call(s.breaker, OpUpload, func() (string, error) {
			return s.next.Upload(ctx, key, r, contentType, size)
		})
		if err != nil && !rewindable {
			return "", resilience.Permanent(err)
		}

		return url, err
	})

	s.observe(OpUpload, err)

	return url, err
}

// Download 读取对象.
func (s *Resilient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := resilience.Retry(ctx, s.retrier, OpDownload, func(ctx context.Context) (io.ReadCloser, error) {
		return resilience.Call(s.breaker, OpDownload, func() (io.ReadCloser, error) {
			return s.next.Download(ctx, key)
		})
	})

	s.observe(OpDownload, err)

	return rc, err
}

// Delete 删除对象.
func (s *Resilient) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := resilience.Retry(ctx, s.retrier, OpDelete, func(ctx context.Context) (bool, error) {
		return resilience.Call(s.breaker, OpDelete, func() (bool, error) {
			return s.next.Delete(ctx, key)
		})
	})

	s.observe(OpDelete, err)

	return ok, err
}

// Exists 只经过熔断，快速失败.
func (s *Resilient) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := resilience.Call(s.breaker, OpExists, func() (bool, error) {
		return s.next.Exists(ctx, key)
	})

	s.observe(OpExists, err)

	return ok, err
}

// Presign 生成限时地址.
func (s *Resilient) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := resilience.Retry(ctx, s.retrier, OpPresign, func(ctx context.Context) (string, error) {
		return resilience.Call(s.breaker, OpPresign, func() (string, error) {
			return s.next.Presign(ctx, key, ttl)
		})
	})

	s.observe(OpPresign, err)

	return url, err
}

// Metadata 返回对象元数据.
func (s *Resilient) Metadata(ctx context.Context, key string) (*ObjectMeta, error) {
	meta, err := resilience.Retry(ctx, s.retrier, OpMetadata, func(ctx context.Context) (*ObjectMeta, error) {
		return resilience.Call(s.breaker, OpMetadata, func() (*ObjectMeta, error) {
			return s.next.Metadata(ctx, key)
		})
	})

	s.observe(OpMetadata, err)

	return meta, err
}

// Ping 透传健康检查，不经过熔断，便于观察后端真实状态.
func (s *Resilient) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}

	return nil
}

func (s *Resilient) observe(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	metrics.StorageOperations.WithLabelValues(s.Provider(), op, outcome).Inc()
}
