package configs

import "github.com/spf13/viper"

// AuthConfig 控制调用方身份识别（由网关或 oauth2-proxy 注入的请求头）。
type AuthConfig struct {
	Enabled       bool     `mapstructure:"enabled"`         // 开启身份校验
	UserHeader    string   `mapstructure:"user_header"`     // 携带用户标识的请求头
	SkipPaths     []string `mapstructure:"skip_paths"`      // 跳过校验的路径前缀（如 /metrics、/health）
	DevAllowQuery bool     `mapstructure:"dev_allow_query"` // 非 release 模式允许用 ?user= 便于本地调试
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.user_header", "X-User")
	v.SetDefault("auth.dev_allow_query", true)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/health",
		"/swagger",
	})
}
