package events

import (
	"context"

	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/metrics"
	"github.com/yeisme/photovault/pkg/queue"
)

func init() {
	RegisterFactory(configs.EventProviderDatabase, func(_ context.Context, cfg *configs.EventsConfig, deps Deps) (Publisher, error) {
		if deps.Queue == nil {
			return nil, ErrUnavailable
		}

		return NewQueuePublisher(deps.Queue, cfg.Poller.MaxRetries), nil
	})
}

// QueuePublisher 将事件写入 processing_queue 表.
// 写入失败只记录日志，从不向调用方返回错误.
type QueuePublisher struct {
	repo       repository.QueueRepository
	maxRetries int
}

// NewQueuePublisher 创建兜底队列策略.
func NewQueuePublisher(repo repository.QueueRepository, maxRetries int) *QueuePublisher {
	if maxRetries <= 0 {
		maxRetries = configs.DefaultQueueMaxRetries
	}

	return &QueuePublisher{repo: repo, maxRetries: maxRetries}
}

// Publish 写入默认主题.
func (p *QueuePublisher) Publish(ctx context.Context, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, evt.Topic(), evt, "")
}

// PublishTopic 写入指定主题.
func (p *QueuePublisher) PublishTopic(ctx context.Context, topic string, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, topic, evt, "")
}

// PublishWithCorrelation 写入指定主题.
func (p *QueuePublisher) PublishWithCorrelation(ctx context.Context, topic string, evt queue.Event, correlationID string) error {
	withCorrelation(evt, correlationID)
	p.Enqueue(ctx, topic, evt, nil)

	return nil
}

// Enqueue 写入一条待重放的队列项，cause 为主通道失败原因，可为 nil.
func (p *QueuePublisher) Enqueue(ctx context.Context, topic string, evt queue.Event, cause error) {
	l := ctxPkg.Logger(ctx)

	payload, err := queue.EncodeEvent(evt)
	if err != nil {
		l.Error().Err(err).Str("event", evt.EventName()).Msg("encode queued event failed")
		metrics.QueueItems.WithLabelValues("enqueue_failed").Inc()

		return
	}

	item := &model.ProcessingQueueItem{
		PhotoID:       evt.PhotoRef(),
		CommandType:   CommandFor(evt.EventName()),
		Status:        model.QueuePending,
		MaxRetries:    p.maxRetries,
		Topic:         topic,
		EventType:     evt.EventName(),
		Payload:       string(payload),
		CorrelationID: evt.Correlation(),
	}

	if cause != nil {
		item.LastError = cause.Error()
	}

	err = p.repo.Create(ctx, item)
	observe(p.ProviderType(), topic, err)

	if err != nil {
		l.Error().Err(err).Str("event", evt.EventName()).Uint("photo_id", evt.PhotoRef()).
			Msg("enqueue event failed")
		metrics.QueueItems.WithLabelValues("enqueue_failed").Inc()

		return
	}

	metrics.QueueItems.WithLabelValues("enqueued").Inc()
	l.Debug().Uint("queue_id", item.ID).Str("command", string(item.CommandType)).Msg("event enqueued")
}

// IsAvailable 始终可用.
func (p *QueuePublisher) IsAvailable(context.Context) bool {
	return true
}

// ProviderType 返回 database.
func (p *QueuePublisher) ProviderType() string {
	return string(configs.EventProviderDatabase)
}
