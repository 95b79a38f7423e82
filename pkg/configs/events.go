package configs

import (
	"time"

	"github.com/spf13/viper"
)

// EventProvider 事件发布策略名称.
type EventProvider string

const (
	EventProviderMQ       EventProvider = "mq"       // watermill（NATS JetStream 或 Redis，由 mq.type 决定）
	EventProviderKafka    EventProvider = "kafka"    // segmentio/kafka-go
	EventProviderDatabase EventProvider = "database" // 持久化回退队列

	DefaultKafkaTopicPrefix  = "photo-events-"
	DefaultPollerCron        = "*/5 * * * * *"
	DefaultPollerBatchSize   = 50
	DefaultQueueMaxRetries   = 3
	DefaultQueueRetention    = 72 // 已完成队列项保留时长（小时）
	DefaultQueueRetryBaseSec = 1
)

// EventsConfig 控制事件发布策略.
type EventsConfig struct {
	Enabled        bool          `mapstructure:"enabled"` // 总开关，关闭时仅写审计事件，不对外发布
	Provider       EventProvider `mapstructure:"provider"         rule:"oneof=mq kafka database"`
	DegradeToQueue bool          `mapstructure:"degrade_to_queue"` // 主通道不可用或失败时写入回退队列
	Producer       string        `mapstructure:"producer"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
	Poller         PollerConfig  `mapstructure:"poller"`
}

// KafkaConfig Kafka 发布配置.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks" rule:"oneof=-1 0 1"`
	AutoCreate   bool          `mapstructure:"auto_create_topic"`
}

// PollerConfig 回退队列轮询配置.
type PollerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Cron             string `mapstructure:"cron"              rule:"required"`
	BatchSize        int    `mapstructure:"batch_size"        rule:"min=1,max=1000"`
	MaxRetries       int    `mapstructure:"max_retries"       rule:"min=1"`
	RetryBaseSeconds int    `mapstructure:"retry_base_seconds" rule:"min=0"`
	RetentionHours   int    `mapstructure:"retention_hours"   rule:"min=1"`
}

// RetryBase 返回回退队列重试的基础退避时长.
func (c *PollerConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseSeconds) * time.Second
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.provider", EventProviderDatabase)
	v.SetDefault("events.degrade_to_queue", true)
	v.SetDefault("events.producer", AppName)

	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic_prefix", DefaultKafkaTopicPrefix)
	v.SetDefault("events.kafka.write_timeout", 10*time.Second)
	v.SetDefault("events.kafka.required_acks", -1)
	v.SetDefault("events.kafka.auto_create_topic", true)

	v.SetDefault("events.poller.enabled", true)
	v.SetDefault("events.poller.cron", DefaultPollerCron)
	v.SetDefault("events.poller.batch_size", DefaultPollerBatchSize)
	v.SetDefault("events.poller.max_retries", DefaultQueueMaxRetries)
	v.SetDefault("events.poller.retry_base_seconds", DefaultQueueRetryBaseSec)
	v.SetDefault("events.poller.retention_hours", DefaultQueueRetention)
}
