package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标配置，指标挂在主 gin 引擎的 Path 上.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Path           string            `mapstructure:"path"            rule:"omitempty,startswith=/"`
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"` // 同时暴露默认注册表：Go 运行时、进程与 gorm 指标
	Labels         map[string]string `mapstructure:"labels"`          // 附加到业务指标的常量标签
	Pprof          bool              `mapstructure:"pprof"`           // 在 /debug/pprof 挂载 pprof
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.labels", map[string]string{
		"service": AppName,
	})
	v.SetDefault("metrics.pprof", false)
}
