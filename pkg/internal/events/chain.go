package events

import (
	"context"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/queue"
)

// Chain 主通道加数据库兜底.主通道不可用或发布失败时写入兜底队列，调用方不会看到错误.
type Chain struct {
	primary  Publisher
	fallback *QueuePublisher
}

// NewChain 组合主通道与兜底队列.
func NewChain(primary Publisher, fallback *QueuePublisher) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Primary 返回主通道.
func (c *Chain) Primary() Publisher {
	return c.primary
}

// Publish 发布到默认主题.
func (c *Chain) Publish(ctx context.Context, evt queue.Event) error {
	return c.PublishWithCorrelation(ctx, evt.Topic(), evt, "")
}

// PublishTopic 发布到指定主题.
func (c *Chain) PublishTopic(ctx context.Context, topic string, evt queue.Event) error {
	return c.PublishWithCorrelation(ctx, topic, evt, "")
}

// PublishWithCorrelation 先尝试主通道，失败后降级.
func (c *Chain) PublishWithCorrelation(ctx context.Context, topic string, evt queue.Event, correlationID string) error {
	withCorrelation(evt, correlationID)

	if !c.primary.IsAvailable(ctx) {
		c.fallback.Enqueue(ctx, topic, evt, ErrUnavailable)

		return nil
	}

	err := c.primary.PublishWithCorrelation(ctx, topic, evt, "")
	if err == nil {
		return nil
	}

	l := ctxPkg.Logger(ctx)
	l.Warn().Err(err).Str("provider", c.primary.ProviderType()).Str("topic", topic).
		Msg("primary event channel failed, degrading to queue")
	c.fallback.Enqueue(ctx, topic, evt, err)

	return nil
}

// IsAvailable 兜底队列始终可用.
func (c *Chain) IsAvailable(context.Context) bool {
	return true
}

// ProviderType 返回主通道名称.
func (c *Chain) ProviderType() string {
	return c.primary.ProviderType()
}
