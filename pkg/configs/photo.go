package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxUploadBytes     = 50 << 20 // 50 MiB
	DefaultMaxRetries         = 3
	DefaultMaxTotalAttempts   = 10
	DefaultProcessRetryBase   = 1
	DefaultThumbnailWidth     = 300
	DefaultThumbnailHeight    = 300
	DefaultThumbnailQuality   = 90
	DefaultPhotoKeyPrefix     = "photos"
	DefaultPhotoCacheTTL      = 24 * time.Hour
	DefaultEventCacheTTL      = 5 * time.Minute
	DefaultStuckAfterMinutes  = 30
	DefaultPhotoSweepCron     = "*/10 * * * *"
	DefaultMaxConflictReloads = 3
)

// PhotoConfig 照片上传与处理配置.
type PhotoConfig struct {
	MaxUploadBytes    int64           `mapstructure:"max_upload_bytes"    rule:"min=1"`
	MaxRetries        int             `mapstructure:"max_retries"         rule:"min=1"`
	MaxTotalAttempts  int             `mapstructure:"max_total_attempts"  rule:"min=0"` // 自动与手动重试累计上限，0 表示不限
	RetryBaseSeconds  int             `mapstructure:"retry_base_seconds"  rule:"min=0"`
	RetryBaseMillis   int             `mapstructure:"retry_base_millis"   rule:"min=0"` // 非零时覆盖 RetryBaseSeconds
	KeyPrefix         string          `mapstructure:"key_prefix"          rule:"required"`
	Thumbnail         ThumbnailConfig `mapstructure:"thumbnail"`
	CacheTTL          time.Duration   `mapstructure:"cache_ttl"`
	EventCacheTTL     time.Duration   `mapstructure:"event_cache_ttl"`
	StuckAfterMinutes int             `mapstructure:"stuck_after_minutes" rule:"min=1"`
	SweepCron         string          `mapstructure:"sweep_cron"`
	MaxConflictReload int             `mapstructure:"max_conflict_reload" rule:"min=1"`
}

// ThumbnailConfig 缩略图尺寸与编码质量.
type ThumbnailConfig struct {
	Width   int `mapstructure:"width"   rule:"min=1,max=4096"`
	Height  int `mapstructure:"height"  rule:"min=1,max=4096"`
	Quality int `mapstructure:"quality" rule:"min=1,max=100"`
}

// RetryBase 返回处理重试的退避基数.
func (c *PhotoConfig) RetryBase() time.Duration {
	if c.RetryBaseMillis > 0 {
		return time.Duration(c.RetryBaseMillis) * time.Millisecond
	}

	return time.Duration(c.RetryBaseSeconds) * time.Second
}

// StuckAfter 返回照片被视为卡住的时长.
func (c *PhotoConfig) StuckAfter() time.Duration {
	return time.Duration(c.StuckAfterMinutes) * time.Minute
}

func (c *PhotoConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("photo.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("photo.max_retries", DefaultMaxRetries)
	v.SetDefault("photo.max_total_attempts", DefaultMaxTotalAttempts)
	v.SetDefault("photo.retry_base_seconds", DefaultProcessRetryBase)
	v.SetDefault("photo.retry_base_millis", 0)
	v.SetDefault("photo.key_prefix", DefaultPhotoKeyPrefix)
	v.SetDefault("photo.thumbnail.width", DefaultThumbnailWidth)
	v.SetDefault("photo.thumbnail.height", DefaultThumbnailHeight)
	v.SetDefault("photo.thumbnail.quality", DefaultThumbnailQuality)
	v.SetDefault("photo.cache_ttl", DefaultPhotoCacheTTL)
	v.SetDefault("photo.event_cache_ttl", DefaultEventCacheTTL)
	v.SetDefault("photo.stuck_after_minutes", DefaultStuckAfterMinutes)
	v.SetDefault("photo.sweep_cron", DefaultPhotoSweepCron)
	v.SetDefault("photo.max_conflict_reload", DefaultMaxConflictReloads)
}
