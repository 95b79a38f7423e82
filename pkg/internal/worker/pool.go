// Package worker 提供有界工作池：核心 worker 常驻，队列满时扩展到上限，再满时由调用方执行.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/metrics"
)

// ErrClosed 工作池已关闭.
var ErrClosed = errors.New("worker pool closed")

// PanicError 任务内 panic 被恢复后的错误.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Options 工作池参数.
type Options struct {
	Core      int
	Max       int
	Queue     int
	KeepAlive time.Duration
}

// OptionsFrom 由配置生成参数.
func OptionsFrom(cfg configs.WorkerConfig) Options {
	return Options{
		Core:      cfg.CoreSize,
		Max:       cfg.MaxSize,
		Queue:     cfg.QueueSize,
		KeepAlive: cfg.KeepAlive(),
	}
}

// Stats 工作池快照.
type Stats struct {
	Workers    int   `json:"workers"`
	Active     int64 `json:"active"`
	Queued     int   `json:"queued"`
	CallerRuns int64 `json:"caller_runs"`
}

// Pool 有界工作池.
type Pool struct {
	opts       Options
	tasks      chan func()
	mu         sync.RWMutex
	closed     bool
	workers    int
	wg         sync.WaitGroup
	active     atomic.Int64
	callerRuns atomic.Int64
}

// New 创建工作池并启动核心 worker.
func New(opts Options) *Pool {
	if opts.Core < 1 {
		opts.Core = 1
	}

	if opts.Max < opts.Core {
		opts.Max = opts.Core
	}

	if opts.KeepAlive <= 0 {
		opts.KeepAlive = time.Minute
	}

	p := &Pool{opts: opts, tasks: make(chan func(), opts.Queue)}

	p.mu.Lock()
	for i := 0; i < opts.Core; i++ {
		p.spawn(nil, false)
	}
	p.mu.Unlock()

	return p
}

// spawn 启动一个 worker，调用方持有写锁.
func (p *Pool) spawn(first func(), extra bool) {
	p.workers++
	p.wg.Add(1)
	metrics.WorkerPool.WithLabelValues("workers").Set(float64(p.workers))

	go p.loop(first, extra)
}

func (p *Pool) loop(first func(), extra bool) {
	defer p.wg.Done()

	if first != nil {
		p.run(first)
	}

	if !extra {
		for task := range p.tasks {
			p.run(task)
		}

		p.exit()

		return
	}

	idle := time.NewTimer(p.opts.KeepAlive)
	defer idle.Stop()

	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				p.exit()

				return
			}

			p.run(task)

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}

			idle.Reset(p.opts.KeepAlive)
		case <-idle.C:
			p.exit()

			return
		}
	}
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.workers--
	metrics.WorkerPool.WithLabelValues("workers").Set(float64(p.workers))
	p.mu.Unlock()
}

// run 执行任务并恢复 panic.
func (p *Pool) run(task func()) {
	metrics.WorkerPool.WithLabelValues("active").Set(float64(p.active.Add(1)))

	defer func() {
		metrics.WorkerPool.WithLabelValues("active").Set(float64(p.active.Add(-1)))

		if r := recover(); r != nil {
			log.Logger().Error().Interface("panic", r).Msg("worker task panicked")
		}
	}()

	task()
}

// Submit 提交任务；队列与 worker 都已满时在调用方 goroutine 中同步执行.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()

		return ErrClosed
	}

	select {
	case p.tasks <- task:
		metrics.WorkerPool.WithLabelValues("queued").Set(float64(len(p.tasks)))
		p.mu.RUnlock()

		return nil
	default:
	}
	p.mu.RUnlock()

	p.mu.Lock()
	if !p.closed && p.workers < p.opts.Max {
		p.spawn(task, true)
		p.mu.Unlock()

		return nil
	}

	closed := p.closed
	p.mu.Unlock()

	if closed {
		return ErrClosed
	}

	p.callerRuns.Add(1)
	metrics.WorkerPool.WithLabelValues("caller_runs").Inc()
	p.run(task)

	return nil
}

// Go 在工作池中执行 fn 并返回其结果通道，panic 转为 *PanicError.
func (p *Pool) Go(fn func() error) <-chan error {
	return p.goWith(p.Submit, fn)
}

func (p *Pool) goWith(submit func(func()) error, fn func() error) <-chan error {
	done := make(chan error, 1)

	err := submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r}
			}
		}()

		done <- fn()
	})
	if err != nil {
		done <- err
	}

	return done
}

// submitNested 提交组内任务.组的调用方往往本身占用一个 worker 等待结果，
// 因此没有空闲 worker 时不入队：先扩展 worker，已到上限则由调用方执行.
func (p *Pool) submitNested(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return ErrClosed
	}

	idle := int64(p.workers) - p.active.Load() - int64(len(p.tasks))
	if idle > 0 {
		select {
		case p.tasks <- task:
			p.mu.Unlock()

			return nil
		default:
		}
	}

	if p.workers < p.opts.Max {
		p.spawn(task, true)
		p.mu.Unlock()

		return nil
	}
	p.mu.Unlock()

	p.callerRuns.Add(1)
	metrics.WorkerPool.WithLabelValues("caller_runs").Inc()
	p.run(task)

	return nil
}

// Group 在工作池上运行的一组任务，语义同 errgroup.
type Group struct {
	pool *Pool
	eg   *errgroup.Group
}

// Group 创建任务组，返回的 context 在任一任务失败时取消.
func (p *Pool) Group(ctx context.Context) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)

	return &Group{pool: p, eg: eg}, gctx
}

// Go 提交任务.
func (g *Group) Go(fn func() error) {
	g.eg.Go(func() error {
		return <-g.pool.goWith(g.pool.submitNested, fn)
	})
}

// Wait 等待全部任务并返回第一个错误.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// Stats 返回当前快照.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Workers:    p.workers,
		Active:     p.active.Load(),
		Queued:     len(p.tasks),
		CallerRuns: p.callerRuns.Load(),
	}
}

// Shutdown 停止接收任务并等待已排队任务完成.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
