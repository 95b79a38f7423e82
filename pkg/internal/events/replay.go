package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/backoff"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/metrics"
	"github.com/yeisme/photovault/pkg/queue"
)

// Handler 兜底队列项的本地处理函数.
type Handler func(ctx context.Context, item *model.ProcessingQueueItem, evt queue.Event) error

// ReplayResult 单次重放的统计.
type ReplayResult struct {
	Processed    int `json:"processed"`
	Completed    int `json:"completed"`
	Retried      int `json:"retried"`
	DeadLettered int `json:"dead_lettered"`
}

// Replayer 定时取出到期的兜底队列项，经主通道重新发布并执行本地处理.
type Replayer struct {
	repo     repository.QueueRepository
	primary  Publisher
	policy   backoff.Policy
	batch    int
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[model.CommandType]Handler
	running  sync.Mutex
}

// NewReplayer 创建重放器，primary 可为 nil.
func NewReplayer(repo repository.QueueRepository, primary Publisher, cfg configs.PollerConfig) *Replayer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = configs.DefaultPollerBatchSize
	}

	return &Replayer{
		repo:     repo,
		primary:  primary,
		policy:   backoff.New(cfg.RetryBase()),
		batch:    batch,
		now:      time.Now,
		handlers: make(map[model.CommandType]Handler),
	}
}

// Handle 注册命令的本地处理函数.
func (r *Replayer) Handle(cmd model.CommandType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[cmd] = h
}

// RunOnce 处理一批到期的队列项；同一时刻只允许一个批次运行.
func (r *Replayer) RunOnce(ctx context.Context) (ReplayResult, error) {
	var res ReplayResult

	if !r.running.TryLock() {
		return res, nil
	}
	defer r.running.Unlock()

	items, err := r.repo.FindReady(ctx, r.now(), r.batch)
	if err != nil {
		return res, fmt.Errorf("find ready queue items: %w", err)
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		item := &items[i]
		res.Processed++

		switch r.replay(ctx, item) {
		case model.QueueCompleted:
			res.Completed++
		case model.QueueDeadLetter:
			res.DeadLettered++
		default:
			res.Retried++
		}
	}

	return res, nil
}

// replay 处理单个队列项并返回最终状态.
func (r *Replayer) replay(ctx context.Context, item *model.ProcessingQueueItem) model.QueueStatus {
	ctx = ctxPkg.WithCorrelationID(ctx, item.CorrelationID)
	l := ctxPkg.Logger(ctx).With().Uint("queue_id", item.ID).Str("command", string(item.CommandType)).Logger()

	item.MarkProcessing()

	if err := r.repo.Update(ctx, item); err != nil {
		l.Error().Err(err).Msg("mark queue item processing failed")

		return model.QueuePending
	}

	if err := r.execute(ctx, item); err != nil {
		item.ScheduleRetry(err, r.now(), r.policy)

		if item.IsDeadLetter() {
			l.Error().Err(err).Int("retry_count", item.RetryCount).Msg("queue item moved to dead letter")
			metrics.QueueItems.WithLabelValues("dead_letter").Inc()
		} else {
			l.Warn().Err(err).Int("retry_count", item.RetryCount).Time("next_retry_at", *item.NextRetryAt).
				Msg("queue item replay failed")
			metrics.QueueItems.WithLabelValues("retried").Inc()
		}
	} else {
		item.MarkCompleted(r.now())
		metrics.QueueItems.WithLabelValues("completed").Inc()
	}

	if err := r.repo.Update(ctx, item); err != nil {
		l.Error().Err(err).Msg("save queue item failed")
	}

	return item.Status
}

func (r *Replayer) execute(ctx context.Context, item *model.ProcessingQueueItem) error {
	evt, err := queue.DecodeEvent(item.EventType, []byte(item.Payload))
	if err != nil {
		return err
	}

	if r.primary != nil && r.primary.IsAvailable(ctx) {
		topic := item.Topic
		if topic == "" {
			topic = evt.Topic()
		}

		if err := r.primary.PublishWithCorrelation(ctx, topic, evt, item.CorrelationID); err != nil {
			return err
		}
	}

	r.mu.RLock()
	h, ok := r.handlers[item.CommandType]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	return h(ctx, item, evt)
}

// Cleanup 删除 retention 之前完成的队列项.
func (r *Replayer) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return r.repo.DeleteCompletedBefore(ctx, r.now().Add(-retention))
}
