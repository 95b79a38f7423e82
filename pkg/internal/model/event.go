package model

import "time"

// EventType 审计事件类型.
type EventType string

const (
	EventUploadStarted       EventType = "PHOTO_UPLOAD_STARTED"
	EventUploaded            EventType = "PHOTO_UPLOADED"
	EventProcessingStarted   EventType = "PHOTO_PROCESSING_STARTED"
	EventValidationCompleted EventType = "PHOTO_VALIDATION_COMPLETED"
	EventThumbnailGenerated  EventType = "PHOTO_THUMBNAIL_GENERATED"
	EventMetadataExtracted   EventType = "PHOTO_METADATA_EXTRACTED"
	EventProcessingCompleted EventType = "PHOTO_PROCESSING_COMPLETED"
	EventProcessingFailed    EventType = "PHOTO_PROCESSING_FAILED"
	EventRetryScheduled      EventType = "PHOTO_RETRY_SCHEDULED"
	EventDeleted             EventType = "PHOTO_DELETED"
	EventCacheInvalidated    EventType = "PHOTO_CACHE_INVALIDATED"
)

// PhotoEvent 照片审计日志，只追加，不修改不删除.
type PhotoEvent struct {
	ID            uint      `gorm:"primaryKey"                     json:"id"`
	PhotoID       uint      `gorm:"index:idx_photo_event_time"     json:"photo_id"`
	EventType     EventType `gorm:"size:48;index"                  json:"event_type"`
	Timestamp     time.Time `gorm:"index:idx_photo_event_time;autoCreateTime" json:"timestamp"`
	Success       bool      `json:"success"`
	Details       string    `gorm:"type:text"                      json:"details,omitempty"`
	ErrorMessage  string    `gorm:"type:text"                      json:"error_message,omitempty"`
	CorrelationID string    `gorm:"size:64;index"                  json:"correlation_id"`
	UserID        string    `gorm:"size:255"                       json:"user_id"`
	SourceService string    `gorm:"size:64"                        json:"source_service"`
}
