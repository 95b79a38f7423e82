package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gabriel-vasile/mimetype"

	"github.com/yeisme/photovault/pkg/configs"
)

func init() {
	RegisterFactory(configs.StorageLocal, func(_ context.Context, cfg *configs.StorageConfig) (Storage, error) {
		return NewLocal(cfg.Local.BasePath)
	})
}

// Local 本地文件系统后端，地址形如 file:///abs/path，Presign 返回相同地址.
type Local struct {
	base string
}

// NewLocal 创建本地后端，目录不存在时自动创建.
func NewLocal(basePath string) (*Local, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, failure(string(configs.StorageLocal), OpPing, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, failure(string(configs.StorageLocal), OpPing, err)
	}

	return &Local{base: abs}, nil
}

// Provider 返回后端名称.
func (l *Local) Provider() string { return string(configs.StorageLocal) }

// BasePath 返回根目录.
func (l *Local) BasePath() string { return l.base }

// resolve 将对象键映射为根目录下的路径，拒绝越界键.
func (l *Local) resolve(op, key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	p := filepath.Join(l.base, clean)

	if key == "" || p == l.base || !strings.HasPrefix(p, l.base+string(filepath.Separator)) {
		return "", failure(l.Provider(), op, fmt.Errorf("invalid key %q", key))
	}

	return p, nil
}

func (l *Local) url(p string) string {
	return "file://" + filepath.ToSlash(p)
}

// Upload 先写临时文件再重命名，避免读到半截文件.
func (l *Local) Upload(ctx context.Context, key string, r io.Reader, _ string, _ int64) (string, error) {
	p, err := l.resolve(OpUpload, key)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", failure(l.Provider(), OpUpload, err)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", failure(l.Provider(), OpUpload, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", failure(l.Provider(), OpUpload, err)
	}

	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()

		return "", failure(l.Provider(), OpUpload, err)
	}

	if err := tmp.Close(); err != nil {
		return "", failure(l.Provider(), OpUpload, err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", failure(l.Provider(), OpUpload, err)
	}

	return l.url(p), nil
}

// Download 打开对象文件.
func (l *Local) Download(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.resolve(OpDownload, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(l.Provider(), OpDownload, key)
	}

	if err != nil {
		return nil, failure(l.Provider(), OpDownload, err)
	}

	return f, nil
}

// Delete 删除对象文件.
func (l *Local) Delete(_ context.Context, key string) (bool, error) {
	p, err := l.resolve(OpDelete, key)
	if err != nil {
		return false, err
	}

	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, failure(l.Provider(), OpDelete, err)
	}

	return true, nil
}

// Exists 报告对象文件是否存在.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	p, err := l.resolve(OpExists, key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, failure(l.Provider(), OpExists, err)
	}

	return info.Mode().IsRegular(), nil
}

// Presign 本地文件没有签名机制，返回文件地址.
func (l *Local) Presign(ctx context.Context, key string, _ time.Duration) (string, error) {
	p, err := l.resolve(OpPresign, key)
	if err != nil {
		return "", err
	}

	ok, err := l.Exists(ctx, key)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", notFound(l.Provider(), OpPresign, key)
	}

	return l.url(p), nil
}

// Metadata 通过内容嗅探得到类型，ETag 为内容的 xxhash.
func (l *Local) Metadata(_ context.Context, key string) (*ObjectMeta, error) {
	p, err := l.resolve(OpMetadata, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(l.Provider(), OpMetadata, key)
	}

	if err != nil {
		return nil, failure(l.Provider(), OpMetadata, err)
	}

	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return nil, failure(l.Provider(), OpMetadata, err)
	}

	etag, err := fileDigest(p)
	if err != nil {
		return nil, failure(l.Provider(), OpMetadata, err)
	}

	return &ObjectMeta{
		Key:          key,
		ContentType:  mt.String(),
		Size:         info.Size(),
		ETag:         etag,
		LastModified: info.ModTime(),
	}, nil
}

// Ping 检查根目录可访问.
func (l *Local) Ping(_ context.Context) error {
	if _, err := os.Stat(l.base); err != nil {
		return failure(l.Provider(), OpPing, err)
	}

	return nil
}

func fileDigest(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return strconv.FormatUint(h.Sum64(), 16), nil
}
