package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/photovault/pkg/configs"
)

// 每条 stream 记录的字段.
const (
	fieldUUID     = "uuid"
	fieldPayload  = "payload"
	fieldMetadata = "metadata"

	redisReadBlock = time.Second
)

// RedisPublisher 以 XADD 写入 Redis Stream，主题即 stream 名.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
}

// RedisSubscriber 以 XREAD 从最新位置读取，消息被 Nack 时重新投递.
type RedisSubscriber struct {
	client *redis.Client
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

func redisFactory(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	pubClient := redis.NewClient(opts)
	if err := pubClient.Ping(ctx).Err(); err != nil {
		_ = pubClient.Close()

		return nil, nil, fmt.Errorf("failed to connect to Redis %s: %w", cfg.Redis.Addr, err)
	}

	// 订阅端的 XREAD BLOCK 会占住连接，与发布端分开.
	subClient := redis.NewClient(opts)

	pub := &RedisPublisher{client: pubClient, maxLen: cfg.Redis.MaxLen}
	sub := &RedisSubscriber{client: subClient, logger: logger, closeCh: make(chan struct{})}

	return pub, sub, nil
}

// Publish 逐条写入 stream.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		meta, err := sonic.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata of %s: %w", msg.UUID, err)
		}

		ctx := msg.Context()

		args := &redis.XAddArgs{
			Stream: topic,
			Values: map[string]any{
				fieldUUID:     msg.UUID,
				fieldPayload:  []byte(msg.Payload),
				fieldMetadata: meta,
			},
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}

		if err := p.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", topic, err)
		}
	}

	return nil
}

// Close 关闭发布端连接.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Subscribe 从订阅时刻之后的记录开始读取.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("redis subscriber closed")
	}

	out := make(chan *message.Message)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		s.consume(ctx, topic, out)
	}()

	return out, nil
}

func (s *RedisSubscriber) consume(ctx context.Context, topic string, out chan<- *message.Message) {
	lastID := "$"

	for {
		select {
		case <-s.closeCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{topic, lastID},
			Block:   redisReadBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return
			}

			s.logger.Error("xread failed", err, watermill.LogFields{"topic": topic})
			time.Sleep(redisReadBlock)

			continue
		}

		for _, st := range streams {
			for _, rec := range st.Messages {
				lastID = rec.ID

				if !s.deliver(ctx, toMessage(rec), out) {
					return
				}
			}
		}
	}
}

// deliver 投递并等待确认，Nack 时以新副本重投.
func (s *RedisSubscriber) deliver(ctx context.Context, msg *message.Message, out chan<- *message.Message) bool {
	for {
		m := msg.Copy()
		m.SetContext(ctx)

		select {
		case out <- m:
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}

		select {
		case <-m.Acked():
			return true
		case <-m.Nacked():
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func toMessage(rec redis.XMessage) *message.Message {
	uuid, _ := rec.Values[fieldUUID].(string)
	if uuid == "" {
		uuid = watermill.NewUUID()
	}

	payload, _ := rec.Values[fieldPayload].(string)
	msg := message.NewMessage(uuid, []byte(payload))

	if raw, ok := rec.Values[fieldMetadata].(string); ok && raw != "" {
		_ = sonic.UnmarshalString(raw, &msg.Metadata)
	}

	msg.Metadata.Set("redis_stream_id", rec.ID)

	return msg
}

func (s *RedisSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Close 停止所有订阅并关闭连接.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	err := s.client.Close()
	s.wg.Wait()

	return err
}
