package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/photovault/pkg/configs"
)

const (
	natsDrainTimeout   = 30 * time.Second
	natsFlusherTimeout = 10 * time.Second
	natsCloseTimeout   = 30 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// natsOptions 连接选项：重连、心跳与断线缓冲，认证优先级 JWT > NKey > 用户名密码.
func natsOptions(cfg *configs.MQConfig) []nc.Option {
	common := cfg.Common

	opts := []nc.Option{
		nc.Name(common.ClientID),
		nc.MaxReconnects(common.MaxReconnects),
		nc.ReconnectWait(orDuration(common.ReconnectWait, configs.DefaultReconnectWait)),
		nc.PingInterval(orDuration(common.PingInterval, configs.DefaultPingInterval)),
		nc.MaxPingsOutstanding(common.MaxPingsOut),
		nc.ReconnectBufSize(common.BufferSize),
		nc.DrainTimeout(natsDrainTimeout),
		nc.FlusherTimeout(natsFlusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case cfg.NATS.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NATS.NKey, nil))
	case common.User != "":
		opts = append(opts, nc.UserInfo(common.User, common.Password))
	}

	return opts
}

func jetStreamConfig(cfg *configs.MQConfig) nats.JetStreamConfig {
	if !cfg.NATS.JetStream {
		return nats.JetStreamConfig{Disabled: true}
	}

	return nats.JetStreamConfig{
		AutoProvision: cfg.NATS.AutoProvision,
		TrackMsgId:    cfg.NATS.TrackMsgID,
		AckAsync:      cfg.NATS.AckAsync,
		DurablePrefix: cfg.NATS.DurablePrefix,
	}
}

func natsURL(cfg *configs.MQConfig) string {
	if len(cfg.NATS.ClusterURLs) > 0 {
		return strings.Join(cfg.NATS.ClusterURLs, ",")
	}

	return cfg.Common.URL
}

func orDuration(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}

	return def
}

// natsFactory 创建 NATS Publisher 与 Subscriber，照片事件以 JSON 信封编码.
func natsFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	opts := natsOptions(cfg)
	js := jetStreamConfig(cfg)
	marshaler := &nats.JSONMarshaler{}
	url := natsURL(cfg)

	logger.Info("nats transport", watermill.LogFields{
		"url":         url,
		"jetstream":   cfg.NATS.JetStream,
		"queue_group": cfg.NATS.QueueGroup,
	})

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		JetStream:   js,
		Marshaler:   marshaler,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	subscribers := cfg.NATS.Subscribers
	if subscribers <= 0 {
		subscribers = configs.DefaultMQSubscribers
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.NATS.QueueGroup,
		SubscribersCount: subscribers,
		AckWaitTimeout:   orDuration(cfg.NATS.AckWait, configs.DefaultMQAckWait),
		CloseTimeout:     natsCloseTimeout,
		NatsOptions:      opts,
		JetStream:        js,
		Unmarshaler:      marshaler,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, err
	}

	return pub, sub, nil
}
