package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeNATS  MQType = "nats"
	MQTypeRedis MQType = "redis"

	DefaultMQURL         = "localhost:4222"
	DefaultMQClientID    = "photovault-app"
	DefaultMaxReconnects = 5
	DefaultReconnectWait = 5 * time.Second
	DefaultPingInterval  = 20 * time.Second
	DefaultMaxPingsOut   = 3
	DefaultBufferSize    = 32 * 1024 // 断线期间缓冲的发布字节数

	DefaultMQAckWait     = 30 * time.Second
	DefaultMQSubscribers = 1
	DefaultMQQueueGroup  = "photovault-workers"
)

// MQConfig 消息队列配置，photo.* 事件经由此处的主 broker 发布.
type MQConfig struct {
	Type   MQType         `mapstructure:"type"   rule:"oneof=nats redis"`
	Common MQCommonConfig `mapstructure:"common"`
	NATS   MQNATSConfig   `mapstructure:"nats"`
	Redis  MQRedisConfig  `mapstructure:"redis"`
}

// MQCommonConfig 连接与指标配置.
type MQCommonConfig struct {
	URL             string        `mapstructure:"url"              rule:"hostname_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	ClientID        string        `mapstructure:"client_id"`
	MaxReconnects   int           `mapstructure:"max_reconnects"   rule:"min=-1,max=100"`
	ReconnectWait   time.Duration `mapstructure:"reconnect_wait"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxPingsOut     int           `mapstructure:"max_pings_out"    rule:"min=1,max=10"`
	BufferSize      int           `mapstructure:"buffer_size"      rule:"min=1024,max=16777216"`
	EnableMetrics   bool          `mapstructure:"enable_metrics"`
	MetricsEndpoint string        `mapstructure:"metrics_endpoint"`
}

// MQNATSConfig NATS 与 JetStream 配置.
// JetStream 开启时每个主题自动建流，订阅端以 QueueGroup 分摊消费.
type MQNATSConfig struct {
	JetStream     bool          `mapstructure:"jetstream"`
	AutoProvision bool          `mapstructure:"auto_provision"`
	TrackMsgID    bool          `mapstructure:"track_msg_id"`
	AckAsync      bool          `mapstructure:"ack_async"`
	DurablePrefix string        `mapstructure:"durable_prefix"`
	QueueGroup    string        `mapstructure:"queue_group"`
	Subscribers   int           `mapstructure:"subscribers"    rule:"min=1,max=64"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	JWT           string        `mapstructure:"jwt"`
	NKey          string        `mapstructure:"nkey"`
	ClusterURLs   []string      `mapstructure:"cluster_urls"`
}

// MQRedisConfig Redis Stream 配置，MaxLen>0 时按近似长度裁剪 stream.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
	MaxLen   int64  `mapstructure:"max_len"  rule:"min=0"`
}

// GetMQType 返回当前配置的消息队列类型.
func (c *MQConfig) GetMQType() MQType {
	return c.Type
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeNATS)

	v.SetDefault("mq.common.url", DefaultMQURL)
	v.SetDefault("mq.common.user", "")
	v.SetDefault("mq.common.password", "")
	v.SetDefault("mq.common.client_id", DefaultMQClientID)
	v.SetDefault("mq.common.max_reconnects", DefaultMaxReconnects)
	v.SetDefault("mq.common.reconnect_wait", DefaultReconnectWait)
	v.SetDefault("mq.common.ping_interval", DefaultPingInterval)
	v.SetDefault("mq.common.max_pings_out", DefaultMaxPingsOut)
	v.SetDefault("mq.common.buffer_size", DefaultBufferSize)
	v.SetDefault("mq.common.enable_metrics", false)
	v.SetDefault("mq.common.metrics_endpoint", ":9092")

	v.SetDefault("mq.nats.jetstream", true)
	v.SetDefault("mq.nats.auto_provision", true)
	v.SetDefault("mq.nats.track_msg_id", true)
	v.SetDefault("mq.nats.ack_async", false)
	v.SetDefault("mq.nats.durable_prefix", AppName)
	v.SetDefault("mq.nats.queue_group", DefaultMQQueueGroup)
	v.SetDefault("mq.nats.subscribers", DefaultMQSubscribers)
	v.SetDefault("mq.nats.ack_wait", DefaultMQAckWait)
	v.SetDefault("mq.nats.jwt", "")
	v.SetDefault("mq.nats.nkey", "")
	v.SetDefault("mq.nats.cluster_urls", []string{})

	v.SetDefault("mq.redis.addr", "localhost:6379")
	v.SetDefault("mq.redis.password", "")
	v.SetDefault("mq.redis.db", 0)
	v.SetDefault("mq.redis.max_len", 10000)
}
