// Package resilience 为对象存储与事件通道提供按后端隔离的熔断与重试.
//
// 熔断器基于 sony/gobreaker 的状态机（关闭、打开、半开），是否打开由最近 N 次调用的
// 滑动窗口决定：调用数达到最小值后，失败率或慢调用率达到阈值即打开.
// 重试基于 cenkalti/backoff，退避时长来自 backoff.Policy，熔断打开时不重试.
package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/metrics"
)

// errSlowCall 标记成功但超过慢调用阈值的调用，使 gobreaker 进入失败分支评估窗口.
var errSlowCall = errors.New("slow call")

// Breaker 单个后端的熔断器，可被多个并发流程共享.
type Breaker struct {
	name   string
	cfg    configs.CircuitBreakerConfig
	cb     *gobreaker.CircuitBreaker
	window *window
}

// NewBreaker 按配置创建熔断器.
func NewBreaker(name string, cfg configs.CircuitBreakerConfig) *Breaker {
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		window: newWindow(cfg.WindowSize),
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.MaxRequestsInHalf,
		Timeout:       cfg.OpenDuration(),
		ReadyToTrip:   b.readyToTrip,
		OnStateChange: b.onStateChange,
		IsSuccessful:  isSuccessful,
	})

	metrics.BreakerState.WithLabelValues(name).Set(0)

	return b
}

// Name 返回熔断器名称.
func (b *Breaker) Name() string {
	return b.name
}

// State 返回当前状态：closed、half-open 或 open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Open 报告熔断器是否处于打开状态.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// Execute 在熔断保护下执行 fn；打开状态下不调用 fn，直接返回 *errs.CircuitOpen.
func (b *Breaker) Execute(op string, fn func() error) error {
	_, err := Call(b, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})

	return err
}

// Call 在熔断保护下执行带返回值的 fn.
func Call[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	if !b.cfg.Enabled {
		return fn()
	}

	var result T

	_, err := b.cb.Execute(func() (any, error) {
		v, err := observe(b, fn)
		result = v

		return nil, err
	})

	switch {
	case err == nil, errors.Is(err, errSlowCall):
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		var zero T

		return zero, &errs.CircuitOpen{Name: b.name, Operation: op}
	default:
		return result, err
	}
}

// observe 执行 fn 并把结果写入滑动窗口.
func observe[T any](b *Breaker, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	slow := b.cfg.SlowCallMillis > 0 && time.Since(start) > b.cfg.SlowCallDuration()

	b.window.record(!isSuccessful(err), slow)

	if err == nil && slow {
		return v, errSlowCall
	}

	return v, err
}

func (b *Breaker) readyToTrip(_ gobreaker.Counts) bool {
	total, failed, slow := b.window.snapshot()
	if total == 0 || total < b.cfg.MinRequests {
		return false
	}

	if float64(failed)/float64(total) >= b.cfg.FailureRate {
		return true
	}

	return b.cfg.SlowCallRate > 0 && float64(slow)/float64(total) >= b.cfg.SlowCallRate
}

func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	b.window.reset()

	metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))

	evt := log.Logger().Warn()
	if to == gobreaker.StateClosed {
		evt = log.Logger().Info()
	}

	evt.Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state changed")
}

// isSuccessful 对象不存在属于正常业务结果，不计入失败.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, errs.ErrObjectNotFound)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
