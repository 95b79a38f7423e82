package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultLogEnableFile = false                 // 是否启用文件日志
	DefaultLogFilePath   = "logs/photovault.log" // 日志文件路径
	DefaultLogMaxSize    = 100                   // 单个日志文件上限（MB）
	DefaultLogMaxBackups = 7                     // 轮转保留份数
	DefaultLogMaxAge     = 28                    // 轮转文件保留天数
	DefaultLogCompress   = true                  // 压缩轮转文件
	DefaultLogLevel      = "info"                // 日志级别
	DefaultLogConsole    = false                 // 非调试模式下也使用控制台格式
)

type (
	// LogConfig 日志配置，调试模式或 console=true 时输出控制台格式，否则输出 JSON.
	LogConfig struct {
		Level      string `mapstructure:"level"        rule:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
		Console    bool   `mapstructure:"console"`
		EnableFile bool   `mapstructure:"enable_file"`
		FilePath   string `mapstructure:"file_path"    rule:"required_if=EnableFile true"`
		MaxSize    int    `mapstructure:"max_size_mb"  rule:"min=0"`
		MaxBackups int    `mapstructure:"max_backups"  rule:"min=0"`
		MaxAge     int    `mapstructure:"max_age_days" rule:"min=0"`
		Compress   bool   `mapstructure:"compress"`
	}
)

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.enable_file", DefaultLogEnableFile)
	v.SetDefault("log.file_path", DefaultLogFilePath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.compress", DefaultLogCompress)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.console", DefaultLogConsole)
}
