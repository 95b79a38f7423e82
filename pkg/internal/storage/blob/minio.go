package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/photovault/pkg/configs"
	nlog "github.com/yeisme/photovault/pkg/log"
)

func init() {
	RegisterFactory(configs.StorageMinIO, func(ctx context.Context, cfg *configs.StorageConfig) (Storage, error) {
		return NewMinIO(ctx, cfg.MinIO)
	})
}

// MinIO S3 兼容对象存储后端（minio-go）.
type MinIO struct {
	cli    *minio.Client
	bucket string
	base   string
}

// NewMinIO 初始化 MinIO 客户端，bucket 不存在时尝试创建.
func NewMinIO(ctx context.Context, cfg configs.S3Config) (*MinIO, error) {
	endpoint := cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, failure(string(configs.StorageMinIO), OpPing, fmt.Errorf("create minio client: %w", err))
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, failure(string(configs.StorageMinIO), OpPing, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err))
	}

	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, failure(string(configs.StorageMinIO), OpPing, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err))
		}

		nlog.Logger().Info().Str("bucket", cfg.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("minio connected")

	return &MinIO{
		cli:    cli,
		bucket: cfg.BucketName,
		base:   strings.TrimSuffix(cli.EndpointURL().String(), "/") + "/" + cfg.BucketName + "/",
	}, nil
}

// Provider 返回后端名称.
func (m *MinIO) Provider() string { return string(configs.StorageMinIO) }

// Upload 写入对象.
func (m *MinIO) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (string, error) {
	if size <= 0 {
		size = -1
	}

	_, err := m.cli.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", failure(m.Provider(), OpUpload, err)
	}

	return m.base + key, nil
}

// Download 读取对象；先 Stat 以便区分对象不存在.
func (m *MinIO) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := m.cli.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		return nil, m.wrap(OpDownload, key, err)
	}

	obj, err := m.cli.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap(OpDownload, key, err)
	}

	return obj, nil
}

// Delete 删除对象，返回此前是否存在.
func (m *MinIO) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := m.Exists(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	if err := m.cli.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, failure(m.Provider(), OpDelete, err)
	}

	return true, nil
}

// Exists 报告对象是否存在.
func (m *MinIO) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.cli.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	if isMinioNotFound(err) {
		return false, nil
	}

	return false, failure(m.Provider(), OpExists, err)
}

// Presign 生成限时下载地址.
func (m *MinIO) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.cli.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", failure(m.Provider(), OpPresign, err)
	}

	return u.String(), nil
}

// Metadata 返回对象元数据.
func (m *MinIO) Metadata(ctx context.Context, key string) (*ObjectMeta, error) {
	info, err := m.cli.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, m.wrap(OpMetadata, key, err)
	}

	return &ObjectMeta{
		Key:          key,
		ContentType:  info.ContentType,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		UserTags:     info.UserTags,
	}, nil
}

// Ping 检查 bucket 可访问.
func (m *MinIO) Ping(ctx context.Context) error {
	if _, err := m.cli.BucketExists(ctx, m.bucket); err != nil {
		return failure(m.Provider(), OpPing, err)
	}

	return nil
}

func (m *MinIO) wrap(op, key string, err error) error {
	if isMinioNotFound(err) {
		return notFound(m.Provider(), op, key)
	}

	return failure(m.Provider(), op, err)
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
