package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// 默认熔断器配置.
	DefaultCBFailureRate       = 0.5
	DefaultCBSlowCallRate      = 1.0
	DefaultCBSlowCallMillis    = 2000
	DefaultCBWindowSize        = 10
	DefaultCBMinRequests       = 5
	DefaultCBOpenSeconds       = 30
	DefaultCBMaxRequestsInHalf = 5

	// 默认重试配置.
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseSeconds = 1
)

// CircuitBreakerConfig 熔断器配置.
type CircuitBreakerConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	FailureRate       float64 `mapstructure:"failure_rate"         rule:"gt=0,lte=1"` // 滑动窗口失败比例阈值 (0,1]
	SlowCallRate      float64 `mapstructure:"slow_call_rate"       rule:"gt=0,lte=1"` // 慢调用比例阈值 (0,1]
	SlowCallMillis    int     `mapstructure:"slow_call_millis"     rule:"min=1"`      // 慢调用判定阈值（毫秒）
	WindowSize        int     `mapstructure:"window_size"          rule:"min=1"`      // 滑动窗口记录最近 N 次调用
	MinRequests       int     `mapstructure:"min_requests"         rule:"min=1"`      // 进入统计的最小调用数
	OpenSeconds       int     `mapstructure:"open_seconds"         rule:"min=0"`      // 打开状态持续时间（之后半开）
	OpenMillis        int     `mapstructure:"open_millis"          rule:"min=0"`      // 非零时覆盖 OpenSeconds
	MaxRequestsInHalf uint32  `mapstructure:"max_requests_in_half" rule:"min=1"`      // 半开状态允许的试探调用数
}

// SlowCallDuration 返回慢调用阈值.
func (c CircuitBreakerConfig) SlowCallDuration() time.Duration {
	return time.Duration(c.SlowCallMillis) * time.Millisecond
}

// OpenDuration 返回打开状态持续时间.
func (c CircuitBreakerConfig) OpenDuration() time.Duration {
	if c.OpenMillis > 0 {
		return time.Duration(c.OpenMillis) * time.Millisecond
	}

	return time.Duration(c.OpenSeconds) * time.Second
}

// RetryConfig 存储操作重试配置.
type RetryConfig struct {
	MaxAttempts  int  `mapstructure:"max_attempts"  rule:"min=1,max=10"`
	BaseSeconds  int  `mapstructure:"base_seconds"  rule:"min=0"`
	BaseMillis   int  `mapstructure:"base_millis"   rule:"min=0"` // 非零时覆盖 BaseSeconds，便于测试
	RetryOnOpen  bool `mapstructure:"retry_on_open"`
	MaxElapsedMs int  `mapstructure:"max_elapsed_ms" rule:"min=0"` // 0 表示不限制
}

// Base 返回退避基数.
func (c RetryConfig) Base() time.Duration {
	if c.BaseMillis > 0 {
		return time.Duration(c.BaseMillis) * time.Millisecond
	}

	return time.Duration(c.BaseSeconds) * time.Second
}

// ResilienceConfig 熔断与重试配置，Backends 按后端名称覆盖默认熔断参数.
type ResilienceConfig struct {
	Default  CircuitBreakerConfig            `mapstructure:"default"`
	Backends map[string]CircuitBreakerConfig `mapstructure:"backends"`
	Retry    RetryConfig                     `mapstructure:"retry"`
}

// ForBackend 返回指定后端的熔断配置，未单独配置时返回默认值.
func (c *ResilienceConfig) ForBackend(name string) CircuitBreakerConfig {
	if cfg, ok := c.Backends[name]; ok {
		return cfg
	}

	return c.Default
}

func (c *ResilienceConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("resilience.default.enabled", true)
	v.SetDefault("resilience.default.failure_rate", DefaultCBFailureRate)
	v.SetDefault("resilience.default.slow_call_rate", DefaultCBSlowCallRate)
	v.SetDefault("resilience.default.slow_call_millis", DefaultCBSlowCallMillis)
	v.SetDefault("resilience.default.window_size", DefaultCBWindowSize)
	v.SetDefault("resilience.default.min_requests", DefaultCBMinRequests)
	v.SetDefault("resilience.default.open_seconds", DefaultCBOpenSeconds)
	v.SetDefault("resilience.default.max_requests_in_half", DefaultCBMaxRequestsInHalf)

	// 事件通道的熔断阈值更宽松
	v.SetDefault("resilience.backends", map[string]any{
		"events-mq": map[string]any{
			"enabled": true, "failure_rate": 0.7, "slow_call_rate": 1.0, "slow_call_millis": 5000,
			"window_size": 20, "min_requests": 10, "open_seconds": 60, "max_requests_in_half": 3,
		},
		"events-kafka": map[string]any{
			"enabled": true, "failure_rate": 0.7, "slow_call_rate": 1.0, "slow_call_millis": 5000,
			"window_size": 20, "min_requests": 10, "open_seconds": 60, "max_requests_in_half": 3,
		},
	})

	v.SetDefault("resilience.retry.max_attempts", DefaultRetryMaxAttempts)
	v.SetDefault("resilience.retry.base_seconds", DefaultRetryBaseSeconds)
	v.SetDefault("resilience.retry.base_millis", 0)
	v.SetDefault("resilience.retry.retry_on_open", false)
	v.SetDefault("resilience.retry.max_elapsed_ms", 0)
}
