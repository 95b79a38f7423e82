// Package events 实现照片领域事件的发布策略.
//
// 可选策略：
//   - mq: 通过 storage/mq 的 watermill Publisher（NATS JetStream 或 Redis）发布信封消息
//   - kafka: segmentio/kafka-go，主题为 前缀 + 事件主题，键为关联 ID
//   - database: 写入 processing_queue 表，始终可用，从不返回错误
//
// 主通道由各自的熔断器（events-<provider>）保护；开启 degrade_to_queue 时与数据库兜底组成 Chain，
// 主通道不可用或失败时事件落入兜底队列，由 Replayer 定时重放.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	mqc "github.com/yeisme/photovault/pkg/internal/storage/mq"
	"github.com/yeisme/photovault/pkg/metrics"
	"github.com/yeisme/photovault/pkg/queue"
)

// ErrUnavailable 主通道当前不可用.
var ErrUnavailable = errors.New("event channel unavailable")

// OpPublish 熔断器与指标中的操作名称.
const OpPublish = "publish"

// ProviderNone 事件发布关闭时的策略名称.
const ProviderNone = "none"

// Publisher 事件发布策略.
type Publisher interface {
	// Publish 发布到事件的默认主题.
	Publish(ctx context.Context, evt queue.Event) error
	// PublishTopic 发布到指定主题.
	PublishTopic(ctx context.Context, topic string, evt queue.Event) error
	// PublishWithCorrelation 发布到指定主题并覆盖事件的关联 ID.
	PublishWithCorrelation(ctx context.Context, topic string, evt queue.Event, correlationID string) error
	// IsAvailable 报告该策略当前是否可以接收事件.
	IsAvailable(ctx context.Context) bool
	// ProviderType 返回策略名称.
	ProviderType() string
}

// Deps 构造发布策略所需的依赖，按策略取用.
type Deps struct {
	MQ         *mqc.Client
	Queue      repository.QueueRepository
	Resilience *resilience.Registry
}

// Factory 策略构造函数.
type Factory func(ctx context.Context, cfg *configs.EventsConfig, deps Deps) (Publisher, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.EventProvider]Factory{}
)

// RegisterFactory 注册策略工厂.
func RegisterFactory(name configs.EventProvider, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[name] = f
}

// Registered 返回已注册的策略名称.
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

// New 按配置创建发布策略.
// 主通道不是 database 且开启 degrade_to_queue 时返回带兜底的 Chain.
func New(ctx context.Context, cfg *configs.EventsConfig, deps Deps) (Publisher, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Provider)
	}

	primary, err := f(ctx, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("init %s publisher: %w", cfg.Provider, err)
	}

	if cfg.Provider == configs.EventProviderDatabase || !cfg.DegradeToQueue {
		return primary, nil
	}

	if deps.Queue == nil {
		return nil, fmt.Errorf("degrade_to_queue requires a queue repository")
	}

	return NewChain(primary, NewQueuePublisher(deps.Queue, cfg.Poller.MaxRetries)), nil
}

// PrimaryOf 返回可用于重放的主通道；纯数据库策略或关闭发布时返回 nil.
func PrimaryOf(p Publisher) Publisher {
	switch v := p.(type) {
	case *Chain:
		return v.primary
	case *QueuePublisher, Noop, nil:
		return nil
	default:
		return p
	}
}

// CommandFor 返回事件对应的兜底队列命令.
func CommandFor(eventName string) model.CommandType {
	switch eventName {
	case queue.EventProcessingStarted:
		return model.CommandValidatePhoto
	case queue.EventProcessingCompleted:
		return model.CommandGenerateThumbnail
	case queue.EventPhotoDeleted:
		return model.CommandDeletePhoto
	default:
		return model.CommandProcessPhoto
	}
}

func publishFailure(evt queue.Event, topic string, err error) error {
	return &errs.EventPublishFailure{EventType: evt.EventName(), Topic: topic, Err: err}
}

func observe(provider, topic string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	metrics.EventsPublished.WithLabelValues(provider, topic, outcome).Inc()
}

// withCorrelation 在 correlationID 非空时覆盖事件的关联 ID.
func withCorrelation(evt queue.Event, correlationID string) {
	if correlationID != "" {
		evt.SetCorrelation(correlationID)
	}
}

// Noop 关闭发布时使用，所有事件被丢弃.
type Noop struct{}

func (Noop) Publish(context.Context, queue.Event) error { return nil }

func (Noop) PublishTopic(context.Context, string, queue.Event) error { return nil }

func (Noop) PublishWithCorrelation(context.Context, string, queue.Event, string) error {
	return nil
}

func (Noop) IsAvailable(context.Context) bool { return false }

func (Noop) ProviderType() string { return ProviderNone }
