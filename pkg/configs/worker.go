package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultWorkerCoreSize        = 10
	DefaultWorkerMaxSize         = 50
	DefaultWorkerQueueSize       = 100
	DefaultWorkerKeepAliveSecond = 60
	DefaultWorkerShutdownSecond  = 60
)

// WorkerConfig 异步任务工作池配置.
type WorkerConfig struct {
	CoreSize         int `mapstructure:"core_size"         rule:"min=1"`
	MaxSize          int `mapstructure:"max_size"          rule:"min=1,gtefield=CoreSize"`
	QueueSize        int `mapstructure:"queue_size"        rule:"min=0"`
	KeepAliveSeconds int `mapstructure:"keep_alive_seconds" rule:"min=1"`
	ShutdownSeconds  int `mapstructure:"shutdown_seconds"  rule:"min=0"`
}

// KeepAlive 返回扩展 worker 的空闲存活时间.
func (c *WorkerConfig) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveSeconds) * time.Second
}

// ShutdownTimeout 返回关闭时等待任务完成的最长时间.
func (c *WorkerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

func (c *WorkerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("worker.core_size", DefaultWorkerCoreSize)
	v.SetDefault("worker.max_size", DefaultWorkerMaxSize)
	v.SetDefault("worker.queue_size", DefaultWorkerQueueSize)
	v.SetDefault("worker.keep_alive_seconds", DefaultWorkerKeepAliveSecond)
	v.SetDefault("worker.shutdown_seconds", DefaultWorkerShutdownSecond)
}
