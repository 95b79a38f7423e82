package events

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	mqc "github.com/yeisme/photovault/pkg/internal/storage/mq"
	"github.com/yeisme/photovault/pkg/queue"
	"github.com/yeisme/photovault/pkg/tracing"
)

func init() {
	RegisterFactory(configs.EventProviderMQ, func(_ context.Context, cfg *configs.EventsConfig, deps Deps) (Publisher, error) {
		if deps.MQ == nil {
			return nil, fmt.Errorf("mq client is not initialized")
		}

		if deps.Resilience == nil {
			return nil, fmt.Errorf("resilience registry is required")
		}

		return NewMQPublisher(deps.MQ, deps.Resilience, cfg.Producer), nil
	})
}

// MQPublisher 通过 watermill 发布信封消息.
type MQPublisher struct {
	client   *mqc.Client
	breaker  *resilience.Breaker
	producer string
}

// NewMQPublisher 创建 mq 发布策略.
func NewMQPublisher(client *mqc.Client, reg *resilience.Registry, producer string) *MQPublisher {
	return &MQPublisher{
		client:   client,
		breaker:  reg.Breaker("events-" + string(configs.EventProviderMQ)),
		producer: producer,
	}
}

// Publish 发布到默认主题.
func (p *MQPublisher) Publish(ctx context.Context, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, evt.Topic(), evt, "")
}

// PublishTopic 发布到指定主题.
func (p *MQPublisher) PublishTopic(ctx context.Context, topic string, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, topic, evt, "")
}

// PublishWithCorrelation 发布到指定主题.
func (p *MQPublisher) PublishWithCorrelation(ctx context.Context, topic string, evt queue.Event, correlationID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "events.mq.publish")
	defer func() { tracing.EndSpan(span, err) }()

	withCorrelation(evt, correlationID)

	if !p.client.Available() {
		observe(p.ProviderType(), topic, ErrUnavailable)

		return publishFailure(evt, topic, ErrUnavailable)
	}

	msg, err := queue.NewEventMessage(topic, evt, headerOptions(ctx, p.producer)...)
	if err != nil {
		return publishFailure(evt, topic, err)
	}

	err = p.breaker.Execute(OpPublish, func() error {
		return p.client.Publish(ctx, topic, msg)
	})
	observe(p.ProviderType(), topic, err)

	if err != nil {
		return publishFailure(evt, topic, err)
	}

	return nil
}

// IsAvailable 客户端未关闭且熔断器未打开.
func (p *MQPublisher) IsAvailable(context.Context) bool {
	return p.client.Available() && !p.breaker.Open()
}

// ProviderType 返回 mq.
func (p *MQPublisher) ProviderType() string {
	return string(configs.EventProviderMQ)
}

// headerOptions 生成信封头部选项：生产者与当前 trace id.
func headerOptions(ctx context.Context, producer string) []func(*queue.EventHeader) {
	opts := []func(*queue.EventHeader){queue.WithProducer(producer)}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, queue.WithTraceID(sc.TraceID().String()))
	}

	return opts
}
