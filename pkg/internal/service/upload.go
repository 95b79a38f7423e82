package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/queue"
	"github.com/yeisme/photovault/pkg/rule"
	"github.com/yeisme/photovault/pkg/tracing"
)

// UploadRequest 一次上传的输入.Size 为声明大小，未知时传 -1.
type UploadRequest struct {
	UserID      string `rule:"required,max=255"`
	Body        io.Reader
	ContentType string `rule:"required,image_mime"`
	Size        int64
	Filename    string   `rule:"required,max=512"`
	Description string   `rule:"max=4096"`
	Tags        []string `rule:"max=32,dive,photo_tag"`
}

// UploadService 照片上传.
type UploadService struct {
	photos    repository.PhotoRepository
	audit     *auditor
	blob      blob.Storage
	publisher events.Publisher
	submitter Submitter
	maxBytes  int64
	prefix    string
	now       func() time.Time
}

// NewUploadService 创建上传服务，submitter 负责后续的异步处理.
func NewUploadService(d Deps, submitter Submitter) *UploadService {
	return &UploadService{
		photos:    d.Photos,
		audit:     &auditor{events: d.Events, cache: d.Cache},
		blob:      d.Blob,
		publisher: d.Publisher,
		submitter: submitter,
		maxBytes:  d.Photo.MaxUploadBytes,
		prefix:    d.Photo.KeyPrefix,
		now:       time.Now,
	}
}

// Upload 校验、去重并写入原图，成功后提交异步处理.
//
// 校验失败与重复内容同步返回错误；原图写入失败时照片进入 FAILED 并随 nil 错误返回.
func (s *UploadService) Upload(ctx context.Context, req *UploadRequest) (p *model.Photo, err error) {
	ctx, cid := ctxPkg.EnsureCorrelationID(ctx)

	ctx, span := tracing.StartSpan(ctx, "photo.upload")
	defer func() { tracing.EndSpan(span, err) }()

	l := ctxPkg.Logger(ctx)

	if err := s.validate(req); err != nil {
		return nil, err
	}

	data, sum, err := s.spool(req.Body)
	if err != nil {
		return nil, err
	}

	mt := mimetype.Detect(data)
	if !rule.IsImageMIME(mt.String()) {
		return nil, &errs.ValidationError{Field: "content", Message: "payload is not an image: " + mt.String()}
	}

	if existing, err := s.photos.FindByChecksum(ctx, sum); err == nil {
		return nil, &errs.DuplicateContent{ExistingID: existing.ID, Checksum: sum}
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	p = &model.Photo{
		UserID:           req.UserID,
		OriginalFileName: req.Filename,
		ContentType:      baseType(mt.String()),
		FileSize:         int64(len(data)),
		Checksum:         &sum,
		StorageProvider:  s.blob.Provider(),
		Description:      req.Description,
		Tags:             strings.Join(req.Tags, ","),
		Status:           model.StatusPending,
	}

	if err := s.photos.Create(ctx, p); err != nil {
		if existing, ferr := s.photos.FindByChecksum(ctx, sum); ferr == nil {
			return nil, &errs.DuplicateContent{ExistingID: existing.ID, Checksum: sum}
		}

		return nil, err
	}

	s.audit.record(ctx, p, model.EventUploadStarted, true,
		fmt.Sprintf("%s %s %d bytes", req.Filename, p.ContentType, p.FileSize), "")

	ext := p.Ext()
	if ext == "" {
		ext = mt.Extension()
	}

	key := buildStorageKey(s.prefix, p.UserID, p.ID, ext, s.now())

	p, err = mutatePhoto(ctx, s.photos, p, 0, func(p *model.Photo) error {
		if err := transition(ctx, p, model.StatusUploading, s.now()); err != nil {
			return err
		}

		p.StorageKey = key

		return nil
	})
	if err != nil {
		return nil, err
	}

	url, upErr := s.blob.Upload(ctx, key, bytes.NewReader(data), p.ContentType, p.FileSize)
	if upErr != nil {
		l.Error().Err(upErr).Uint("photo_id", p.ID).Str("key", key).Msg("store original failed")

		return s.uploadFailed(ctx, p, upErr)
	}

	p, err = mutatePhoto(ctx, s.photos, p, 0, func(p *model.Photo) error {
		if err := transition(ctx, p, model.StatusUploaded, s.now()); err != nil {
			return err
		}

		p.StorageURL = url
		p.StorageProvider = s.blob.Provider()

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx, p, model.EventUploaded, true, key, "")
	publish(ctx, s.publisher, queue.TopicPhotoUploaded,
		queue.NewPhotoUploaded(p.ID, p.UserID, p.StorageKey, p.OriginalFileName, p.ContentType, p.FileSize, cid), cid)

	l.Info().Uint("photo_id", p.ID).Str("key", key).Int64("size", p.FileSize).Msg("photo uploaded")

	if s.submitter != nil {
		s.submitter.Submit(ctx, p.ID, cid)
	}

	return p, nil
}

// uploadFailed 原图写入失败：进入 FAILED，清空存储键并释放校验和.
func (s *UploadService) uploadFailed(ctx context.Context, p *model.Photo, cause error) (*model.Photo, error) {
	failed, err := mutatePhoto(ctx, s.photos, p, 0, func(p *model.Photo) error {
		if err := transition(ctx, p, model.StatusFailed, s.now()); err != nil {
			return err
		}

		p.LastError = cause.Error()
		p.StorageKey = ""
		p.Checksum = nil

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx, failed, model.EventUploaded, false, "", cause.Error())

	return failed, nil
}

func (s *UploadService) validate(req *UploadRequest) error {
	if req == nil || req.Body == nil {
		return &errs.ValidationError{Field: "content", Message: "empty content"}
	}

	req.Tags = trimTags(req.Tags)

	if err := rule.ValidateStruct(req); err != nil {
		if field, tag, ok := rule.FirstError(err); ok {
			return &errs.ValidationError{Field: field, Message: "failed on " + tag}
		}

		return &errs.ValidationError{Message: err.Error()}
	}

	if s.maxBytes > 0 && req.Size > s.maxBytes {
		return &errs.PayloadTooLarge{Limit: s.maxBytes, Size: req.Size}
	}

	if req.Size == 0 {
		return &errs.ValidationError{Field: "content", Message: "empty content"}
	}

	return nil
}

// spool 读入内存并计算 SHA-256，最多读取上限加一字节.
func (s *UploadService) spool(r io.Reader) ([]byte, string, error) {
	h := sha256.New()

	limit := s.maxBytes
	if limit <= 0 {
		limit = 1<<63 - 2
	}

	var buf bytes.Buffer
	n, err := io.Copy(io.MultiWriter(&buf, h), io.LimitReader(r, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}

	if n == 0 {
		return nil, "", &errs.ValidationError{Field: "content", Message: "empty content"}
	}

	if n > limit {
		return nil, "", &errs.PayloadTooLarge{Limit: limit, Size: n}
	}

	return buf.Bytes(), hex.EncodeToString(h.Sum(nil)), nil
}

// baseType 去掉 mime 参数.
func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		return strings.TrimSpace(ct[:i])
	}

	return ct
}

// trimTags 去掉空白标签.
func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))

	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}

	return out
}

// MaxBytes 返回单张照片的大小上限.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}
