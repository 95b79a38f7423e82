// Package configs 管理应用程序配置，包括数据库、对象存储、消息队列、事件发布与照片处理的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing storage config:
//
//	storageConfig := configs.GetConfig().Storage
//	fmt.Println("provider:", storageConfig.Provider)
//
// Example accessing per-backend circuit breaker config:
//
//	cb := configs.GetConfig().Resilience.ForBackend("minio")
//	fmt.Println(cb.FailureRate, cb.WindowSize)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/photovault/pkg/rule"
)

const (
	// AppName 应用名称，同时作为配置文件名与环境变量前缀.
	AppName = "photovault"
	// AppVersion 应用版本.
	AppVersion = "1.0.0"
)

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server     ServerConfig     `mapstructure:"server"`     // ServerConfig 服务器配置
		DB         DBConfig         `mapstructure:"db"`         // DBConfig 数据库配置
		Storage    StorageConfig    `mapstructure:"storage"`    // StorageConfig 对象存储配置
		MQ         MQConfig         `mapstructure:"mq"`         // MQConfig 消息队列配置
		KV         KVConfig         `mapstructure:"kv"`         // KVConfig 键值缓存配置
		Events     EventsConfig     `mapstructure:"events"`     // EventsConfig 事件发布配置
		Resilience ResilienceConfig `mapstructure:"resilience"` // ResilienceConfig 熔断与重试配置
		Photo      PhotoConfig      `mapstructure:"photo"`      // PhotoConfig 照片上传与处理配置
		Worker     WorkerConfig     `mapstructure:"worker"`     // WorkerConfig 异步工作池配置
		Log        LogConfig        `mapstructure:"log"`        // LogConfig 日志相关配置
		Metrics    MetricsConfig    `mapstructure:"metrics"`    // MetricsConfig 指标配置
		Tracing    TracingConfig    `mapstructure:"tracing"`    // TracingConfig 链路追踪配置
		RateLimit  RateLimitConfig  `mapstructure:"rate_limit"` // RateLimitConfig 限流配置
		Auth       AuthConfig       `mapstructure:"auth"`       // AuthConfig 身份识别配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	// configMu 保护热重载时对 globalConfig 的写入.
	configMu sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// 未找到配置文件时使用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	// 设置默认值
	setAllDefaults(v)

	if path == "" {
		path = "."
	}

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		v.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		v.SetConfigName(AppName)
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, AppName+"."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	// 解析到全局配置
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := rule.ValidateStruct(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	globalConfig = cfg
	appViper = v
	configMu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.Storage.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.Resilience.setDefaults(v)
	cfg.Photo.setDefaults(v)
	cfg.Worker.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.Auth.setDefaults(v)
}

// Defaults 返回仅由默认值构成的配置，主要用于测试与命令行工具.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig
	_ = v.Unmarshal(&cfg)

	return cfg
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)

			return
		}

		if err := rule.ValidateStruct(&cfg); err != nil {
			fmt.Printf("Reloaded config is invalid, keeping previous: %v\n", err)

			return
		}

		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// GetViper 返回全局 Viper 实例.
func GetViper() *viper.Viper {
	return appViper
}

const redactedValue = "******"

// Redacted 返回隐去密码与密钥的副本，用于打印.
func (c AppConfig) Redacted() AppConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = redactedValue
		}
	}

	mask(&c.DB.Password)
	mask(&c.MQ.Common.Password)
	mask(&c.MQ.Redis.Password)
	mask(&c.KV.Redis.Password)
	mask(&c.KV.NATS.Password)
	mask(&c.Storage.MinIO.SecretAccessKey)
	mask(&c.Storage.S3.SecretAccessKey)

	return c
}
