package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StorageProvider 对象存储后端名称.
type StorageProvider string

const (
	StorageMinIO StorageProvider = "minio" // MinIO / S3 兼容存储（minio-go）
	StorageS3    StorageProvider = "s3"    // AWS S3（aws-sdk-go）
	StorageLocal StorageProvider = "local" // 本地文件系统

	DefaultStorageProvider   = StorageLocal
	DefaultPresignTTL        = 15 * time.Minute
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3BucketName      = AppName          // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
	DefaultLocalBasePath     = "./uploads"      // 本地存储根目录
)

// StorageConfig 对象存储配置，Provider 指定默认后端.
type StorageConfig struct {
	Provider   StorageProvider `mapstructure:"provider"    rule:"oneof=minio s3 local"`
	PresignTTL time.Duration   `mapstructure:"presign_ttl"`
	MinIO      S3Config        `mapstructure:"minio"`
	S3         S3Config        `mapstructure:"s3"`
	Local      LocalConfig     `mapstructure:"local"`
}

// S3Config S3 兼容存储配置，MinIO 与 AWS S3 共用.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name" rule:"required"`
	Region          string `mapstructure:"region"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// LocalConfig 本地文件系统存储配置.
type LocalConfig struct {
	BasePath string `mapstructure:"base_path" rule:"required"`
}

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	if c.Endpoint == "" {
		return ""
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置对象存储配置的默认值.
func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.provider", DefaultStorageProvider)
	v.SetDefault("storage.presign_ttl", DefaultPresignTTL)

	v.SetDefault("storage.minio.endpoint", DefaultS3Endpoint)
	v.SetDefault("storage.minio.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("storage.minio.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("storage.minio.use_ssl", DefaultS3UseSSL)
	v.SetDefault("storage.minio.bucket_name", DefaultS3BucketName)
	v.SetDefault("storage.minio.region", DefaultS3Region)

	// AWS S3 默认不设置 endpoint，由 SDK 按 region 解析
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("storage.s3.bucket_name", DefaultS3BucketName)
	v.SetDefault("storage.s3.region", DefaultS3Region)
	v.SetDefault("storage.s3.path_style", false)

	v.SetDefault("storage.local.base_path", DefaultLocalBasePath)
}
