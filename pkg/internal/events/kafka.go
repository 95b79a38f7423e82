package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/queue"
	"github.com/yeisme/photovault/pkg/tracing"
)

func init() {
	RegisterFactory(configs.EventProviderKafka, func(_ context.Context, cfg *configs.EventsConfig, deps Deps) (Publisher, error) {
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}

		if deps.Resilience == nil {
			return nil, fmt.Errorf("resilience registry is required")
		}

		return NewKafkaPublisher(cfg.Kafka, deps.Resilience, cfg.Producer), nil
	})
}

// MessageWriter kafka.Writer 的最小子集.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 通过 kafka-go 发布信封消息，消息键为关联 ID，保证同一流程的事件落在同一分区.
type KafkaPublisher struct {
	writer   MessageWriter
	prefix   string
	breaker  *resilience.Breaker
	producer string
	closed   atomic.Bool
}

// NewKafkaPublisher 创建 kafka 发布策略，主题由每条消息指定.
func NewKafkaPublisher(cfg configs.KafkaConfig, reg *resilience.Registry, producer string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: cfg.AutoCreate,
		BatchTimeout:           10 * time.Millisecond,
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...any) {
			l := log.Component("kafka")
			l.Error().Msgf(msg, args...)
		}),
	}

	return NewKafkaPublisherWithWriter(w, cfg.TopicPrefix, reg, producer)
}

// NewKafkaPublisherWithWriter 使用现成的 writer 创建发布策略.
func NewKafkaPublisherWithWriter(w MessageWriter, prefix string, reg *resilience.Registry, producer string) *KafkaPublisher {
	if prefix == "" {
		prefix = configs.DefaultKafkaTopicPrefix
	}

	return &KafkaPublisher{
		writer:   w,
		prefix:   prefix,
		breaker:  reg.Breaker("events-" + string(configs.EventProviderKafka)),
		producer: producer,
	}
}

// TopicName 返回事件主题对应的 kafka 主题.
func (p *KafkaPublisher) TopicName(topic string) string {
	return p.prefix + topic
}

// Publish 发布到默认主题.
func (p *KafkaPublisher) Publish(ctx context.Context, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, evt.Topic(), evt, "")
}

// PublishTopic 发布到指定主题.
func (p *KafkaPublisher) PublishTopic(ctx context.Context, topic string, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, topic, evt, "")
}

// PublishWithCorrelation 发布到指定主题.
func (p *KafkaPublisher) PublishWithCorrelation(ctx context.Context, topic string, evt queue.Event, correlationID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "events.kafka.publish")
	defer func() { tracing.EndSpan(span, err) }()

	withCorrelation(evt, correlationID)

	if p.closed.Load() {
		observe(p.ProviderType(), topic, ErrUnavailable)

		return publishFailure(evt, topic, ErrUnavailable)
	}

	header, data, err := queue.EncodeEnvelope(topic, evt, headerOptions(ctx, p.producer)...)
	if err != nil {
		return publishFailure(evt, topic, err)
	}

	msg := kafka.Message{
		Topic: p.TopicName(topic),
		Key:   []byte(header.CorrelationID),
		Value: data,
		Headers: []kafka.Header{
			{Key: queue.MetaEventType, Value: []byte(header.EventType)},
			{Key: queue.MetaCorrelationID, Value: []byte(header.CorrelationID)},
			{Key: queue.MetaProducer, Value: []byte(header.Producer)},
			{Key: queue.MetaVersion, Value: []byte(header.Version)},
		},
		Time: header.OccurredAt,
	}

	err = p.breaker.Execute(OpPublish, func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	observe(p.ProviderType(), topic, err)

	if err != nil {
		return publishFailure(evt, topic, err)
	}

	return nil
}

// IsAvailable writer 未关闭且熔断器未打开.
func (p *KafkaPublisher) IsAvailable(context.Context) bool {
	return !p.closed.Load() && !p.breaker.Open()
}

// ProviderType 返回 kafka.
func (p *KafkaPublisher) ProviderType() string {
	return string(configs.EventProviderKafka)
}

// Close 关闭 writer，可重复调用.
func (p *KafkaPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	return p.writer.Close()
}
