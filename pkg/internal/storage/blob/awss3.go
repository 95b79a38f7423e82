package blob

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/yeisme/photovault/pkg/configs"
	nlog "github.com/yeisme/photovault/pkg/log"
)

func init() {
	RegisterFactory(configs.StorageS3, func(_ context.Context, cfg *configs.StorageConfig) (Storage, error) {
		return NewAWSS3(cfg.S3)
	})
}

// AWSS3 AWS S3 后端（aws-sdk-go），上传走 s3manager 分片上传.
type AWSS3 struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	bucket   string
}

// NewAWSS3 创建 AWS S3 后端；未配置密钥时使用 SDK 默认凭证链.
func NewAWSS3(cfg configs.S3Config) (*AWSS3, error) {
	c := aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
	}

	if cfg.AccessKeyID != "" {
		c.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	if ep := cfg.GetEndpointURL(); ep != "" {
		c.Endpoint = aws.String(ep)
	}

	sess, err := session.NewSession(&c)
	if err != nil {
		return nil, failure(string(configs.StorageS3), OpPing, err)
	}

	nlog.Logger().Info().Str("region", cfg.Region).Str("bucket", cfg.BucketName).Msg("aws s3 session created")

	return &AWSS3{
		svc:      s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.BucketName,
	}, nil
}

// Provider 返回后端名称.
func (a *AWSS3) Provider() string { return string(configs.StorageS3) }

// Upload 写入对象.
func (a *AWSS3) Upload(ctx context.Context, key string, r io.Reader, contentType string, _ int64) (string, error) {
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", failure(a.Provider(), OpUpload, err)
	}

	return out.Location, nil
}

// Download 读取对象.
func (a *AWSS3) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := a.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, a.wrap(OpDownload, key, err)
	}

	return out.Body, nil
}

// Delete 删除对象，返回此前是否存在.
func (a *AWSS3) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := a.Exists(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	_, err = a.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, failure(a.Provider(), OpDelete, err)
	}

	return true, nil
}

// Exists 报告对象是否存在.
func (a *AWSS3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.head(ctx, key)
	if err == nil {
		return true, nil
	}

	if isAWSNotFound(err) {
		return false, nil
	}

	return false, failure(a.Provider(), OpExists, err)
}

// Presign 生成限时下载地址.
func (a *AWSS3) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	req, _ := a.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})

	u, err := req.Presign(ttl)
	if err != nil {
		return "", failure(a.Provider(), OpPresign, err)
	}

	return u, nil
}

// Metadata 返回对象元数据，用户元数据作为 UserTags 返回.
func (a *AWSS3) Metadata(ctx context.Context, key string) (*ObjectMeta, error) {
	out, err := a.head(ctx, key)
	if err != nil {
		return nil, a.wrap(OpMetadata, key, err)
	}

	tags := make(map[string]string, len(out.Metadata))
	for k, v := range out.Metadata {
		tags[k] = aws.StringValue(v)
	}

	return &ObjectMeta{
		Key:          key,
		ContentType:  aws.StringValue(out.ContentType),
		Size:         aws.Int64Value(out.ContentLength),
		ETag:         aws.StringValue(out.ETag),
		LastModified: aws.TimeValue(out.LastModified),
		UserTags:     tags,
	}, nil
}

// Ping 检查 bucket 可访问.
func (a *AWSS3) Ping(ctx context.Context) error {
	_, err := a.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return failure(a.Provider(), OpPing, err)
	}

	return nil
}

func (a *AWSS3) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	return a.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
}

func (a *AWSS3) wrap(op, key string, err error) error {
	if isAWSNotFound(err) {
		return notFound(a.Provider(), op, key)
	}

	return failure(a.Provider(), op, err)
}

func isAWSNotFound(err error) bool {
	if rf, ok := err.(awserr.RequestFailure); ok && rf.StatusCode() == http.StatusNotFound {
		return true
	}

	if ae, ok := err.(awserr.Error); ok {
		return ae.Code() == s3.ErrCodeNoSuchKey || ae.Code() == "NotFound"
	}

	return false
}
