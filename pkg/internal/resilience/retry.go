package resilience

import (
	"context"
	"errors"
	"time"

	cbackoff "github.com/cenkalti/backoff/v5"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/backoff"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/log"
)

// Retrier 单个后端的重试预算.
type Retrier struct {
	Name        string
	MaxAttempts int
	Policy      backoff.Policy
	RetryOnOpen bool
	MaxElapsed  time.Duration
}

// NewRetrier 按配置创建重试器.
func NewRetrier(name string, cfg configs.RetryConfig) Retrier {
	return Retrier{
		Name:        name,
		MaxAttempts: cfg.MaxAttempts,
		Policy:      backoff.New(cfg.Base()),
		RetryOnOpen: cfg.RetryOnOpen,
		MaxElapsed:  time.Duration(cfg.MaxElapsedMs) * time.Millisecond,
	}
}

// Permanent 包装不应重试的错误.
func Permanent(err error) error {
	return cbackoff.Permanent(err)
}

// Retry 按重试预算执行 fn；熔断打开与对象不存在不重试，context 取消时立即返回.
func Retry[T any](ctx context.Context, r Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if r.MaxAttempts <= 1 {
		return fn(ctx)
	}

	operation := func() (T, error) {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		if errs.IsCircuitOpen(err) && !r.RetryOnOpen {
			return v, cbackoff.Permanent(err)
		}

		if errors.Is(err, errs.ErrObjectNotFound) || errors.Is(err, context.Canceled) {
			return v, cbackoff.Permanent(err)
		}

		return v, err
	}

	opts := []cbackoff.RetryOption{
		cbackoff.WithBackOff(backoff.NewSequence(r.Policy)),
		cbackoff.WithMaxTries(uint(r.MaxAttempts)),
		cbackoff.WithNotify(func(err error, next time.Duration) {
			log.Logger().Warn().
				Err(err).
				Str("backend", r.Name).
				Str("operation", op).
				Dur("backoff", next).
				Msg("retrying operation")
		}),
	}
	if r.MaxElapsed > 0 {
		opts = append(opts, cbackoff.WithMaxElapsedTime(r.MaxElapsed))
	}

	return cbackoff.Retry(ctx, operation, opts...)
}
