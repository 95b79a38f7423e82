package model

import (
	"path"
	"strings"
	"time"

	"github.com/yeisme/photovault/pkg/internal/errs"
)

// Photo 照片模型，每次上传一行.
//
// 状态只能沿 PhotoStatus 的迁移表变化；所有写入通过仓储的乐观锁更新，Version 每次写入加一.
type Photo struct {
	ID               uint   `gorm:"primaryKey"                 json:"id"`
	UserID           string `gorm:"size:255;index"             json:"user_id"`
	OriginalFileName string `gorm:"size:512"                   json:"original_filename"`
	ContentType      string `gorm:"size:128"                   json:"content_type"`
	FileSize         int64  `gorm:"index"                      json:"file_size"`
	// Checksum 内容 SHA-256，唯一；上传失败时置空以释放
	Checksum        *string `gorm:"size:64;uniqueIndex" json:"checksum,omitempty"`
	StorageProvider string  `gorm:"size:32"             json:"storage_provider"`
	StorageKey      string  `gorm:"size:1024"           json:"storage_key"`
	StorageURL      string  `gorm:"size:2048"           json:"storage_url"`
	ThumbnailKey    string  `gorm:"size:1024"           json:"thumbnail_key"`
	ThumbnailURL    string  `gorm:"size:2048"           json:"thumbnail_url"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	// Metadata EXIF 等元数据的 JSON 文本
	Metadata      string      `gorm:"type:text"       json:"metadata"`
	Description   string      `gorm:"type:text"       json:"description"`
	Tags          string      `gorm:"size:1024"       json:"tags"`
	Status        PhotoStatus `gorm:"size:16;index"   json:"status"`
	RetryCount    int         `gorm:"not null;default:0" json:"retry_count"`
	TotalAttempts int         `gorm:"not null;default:0" json:"total_attempts"`
	LastError     string      `gorm:"type:text"       json:"last_error,omitempty"`
	UploadedAt    time.Time   `gorm:"autoCreateTime"  json:"uploaded_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty"`
	UpdatedAt     time.Time   `gorm:"index"           json:"updated_at"`
	Version       int64       `gorm:"not null;default:0" json:"version"`
}

// TransitionTo 迁移到 to 状态；非法迁移返回 *errs.InvalidTransition 且不修改照片.
// 进入 COMPLETED 时记录处理完成时间.
func (p *Photo) TransitionTo(to PhotoStatus, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return &errs.InvalidTransition{From: string(p.Status), To: string(to)}
	}

	p.Status = to
	if to == StatusCompleted {
		t := now
		p.ProcessedAt = &t
	}

	return nil
}

// ChecksumValue 返回校验和，未设置时为空字符串.
func (p *Photo) ChecksumValue() string {
	if p.Checksum == nil {
		return ""
	}

	return *p.Checksum
}

// Ext 返回原始文件扩展名（小写，含点）.
func (p *Photo) Ext() string {
	return strings.ToLower(path.Ext(p.OriginalFileName))
}

// TagList 返回拆分后的标签.
func (p *Photo) TagList() []string {
	if p.Tags == "" {
		return nil
	}

	parts := strings.Split(p.Tags, ",")
	out := make([]string, 0, len(parts))

	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}

	return out
}

// ThumbnailKeyFor 返回原图键对应的缩略图键：photos/u/1/abc.jpg -> photos/u/1/abc_thumb.jpg.
func ThumbnailKeyFor(key string, ext string) string {
	orig := path.Ext(key)
	stem := strings.TrimSuffix(key, orig)

	if ext == "" {
		ext = orig
	}

	return stem + "_thumb" + ext
}
