package types

import (
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
)

// UploadPhotoForm 上传表单中的可选字段，文件本身位于 multipart 字段 file.
type UploadPhotoForm struct {
	Description string `form:"description" json:"description,omitempty" rule:"max=2000"`
	Tags        string `form:"tags"        json:"tags,omitempty"        rule:"max=1024"` // 逗号分隔
}

// PhotoResponse 照片详情.
type PhotoResponse struct {
	ID               uint       `json:"id"`
	UserID           string     `json:"user_id"`
	OriginalFileName string     `json:"original_filename"`
	ContentType      string     `json:"content_type"`
	FileSize         int64      `json:"file_size"`
	Checksum         string     `json:"checksum,omitempty"`
	StorageProvider  string     `json:"storage_provider,omitempty"`
	StorageKey       string     `json:"storage_key,omitempty"`
	StorageURL       string     `json:"storage_url,omitempty"`
	ThumbnailKey     string     `json:"thumbnail_key,omitempty"`
	ThumbnailURL     string     `json:"thumbnail_url,omitempty"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	Metadata         string     `json:"metadata,omitempty"` // EXIF 分组 JSON
	Description      string     `json:"description,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Status           string     `json:"status"`
	RetryCount       int        `json:"retry_count"`
	TotalAttempts    int        `json:"total_attempts"`
	LastError        string     `json:"last_error,omitempty"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Version          int64      `json:"version"`
}

// NewPhotoResponse 由模型构造响应.
func NewPhotoResponse(p *model.Photo) PhotoResponse {
	return PhotoResponse{
		ID:               p.ID,
		UserID:           p.UserID,
		OriginalFileName: p.OriginalFileName,
		ContentType:      p.ContentType,
		FileSize:         p.FileSize,
		Checksum:         p.ChecksumValue(),
		StorageProvider:  p.StorageProvider,
		StorageKey:       p.StorageKey,
		StorageURL:       p.StorageURL,
		ThumbnailKey:     p.ThumbnailKey,
		ThumbnailURL:     p.ThumbnailURL,
		Width:            p.Width,
		Height:           p.Height,
		Metadata:         p.Metadata,
		Description:      p.Description,
		Tags:             p.TagList(),
		Status:           string(p.Status),
		RetryCount:       p.RetryCount,
		TotalAttempts:    p.TotalAttempts,
		LastError:        p.LastError,
		UploadedAt:       p.UploadedAt,
		ProcessedAt:      p.ProcessedAt,
		UpdatedAt:        p.UpdatedAt,
		Version:          p.Version,
	}
}

// ListPhotosQuery 列表查询，userId 与 status 至少提供一个.
type ListPhotosQuery struct {
	UserID string `form:"userId" json:"user_id,omitempty"`
	Status string `form:"status" json:"status,omitempty"`
	Page   int    `form:"page"   json:"page"             rule:"min=0"`
	Size   int    `form:"size"   json:"size"             rule:"min=0,max=100"`
}

// PageQuery 通用分页参数.
type PageQuery struct {
	Page int `form:"page" json:"page" rule:"min=0"`
	Size int `form:"size" json:"size" rule:"min=0,max=100"`
}

// ListPhotosResponse 照片列表.
type ListPhotosResponse struct {
	Items []PhotoResponse `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// PhotoEventResponse 审计事件.
type PhotoEventResponse struct {
	ID            uint      `json:"id"`
	PhotoID       uint      `json:"photo_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	Details       string    `json:"details,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	UserID        string    `json:"user_id,omitempty"`
	SourceService string    `json:"source_service,omitempty"`
}

// NewPhotoEventResponses 批量转换事件.
func NewPhotoEventResponses(list []model.PhotoEvent) []PhotoEventResponse {
	out := make([]PhotoEventResponse, 0, len(list))
	for i := range list {
		e := &list[i]
		out = append(out, PhotoEventResponse{
			ID:            e.ID,
			PhotoID:       e.PhotoID,
			EventType:     string(e.EventType),
			Timestamp:     e.Timestamp,
			Success:       e.Success,
			Details:       e.Details,
			ErrorMessage:  e.ErrorMessage,
			CorrelationID: e.CorrelationID,
			UserID:        e.UserID,
			SourceService: e.SourceService,
		})
	}

	return out
}

// EventPageResponse 事件分页结果.
type EventPageResponse struct {
	Items []PhotoEventResponse `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}

// AcceptedResponse 异步受理结果.
type AcceptedResponse struct {
	Status        string         `json:"status"` // accepted 或 queued
	CorrelationID string         `json:"correlation_id,omitempty"`
	Photo         *PhotoResponse `json:"photo,omitempty"`
}
