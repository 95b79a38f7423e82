package configs

import "github.com/spf13/viper"

const (
	// 默认速率限制配置.
	DefaultRateLimitEnabled = false
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitKey     = "ip"
	DefaultUploadRPS        = 2.0
	DefaultUploadBurst      = 5
)

// RateLimitConfig 速率限制配置.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"min=0"`
	Burst   int     `mapstructure:"burst" rule:"min=0"`
	// Key 选择限流维度：global（全局）、ip（按客户端IP）、user（按调用方）、header:Header-Name（按请求头）
	Key string `mapstructure:"key"`
	// UploadRPS 上传接口单独的速率，0 表示与其他接口共用
	UploadRPS   float64 `mapstructure:"upload_rps"   rule:"min=0"`
	UploadBurst int     `mapstructure:"upload_burst" rule:"min=0"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.upload_rps", DefaultUploadRPS)
	v.SetDefault("rate_limit.upload_burst", DefaultUploadBurst)
}
