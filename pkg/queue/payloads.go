package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// EventType 负载对应的事件名称，如 PhotoUploaded.
	EventType string `json:"event_type"`
	// CorrelationID 贯穿一次上传及其后续处理的关联 ID.
	CorrelationID string `json:"correlation_id,omitempty"`
	// TraceID 分布式追踪 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// Event 照片领域事件.
type Event interface {
	// EventName 返回事件名称.
	EventName() string
	// Topic 返回默认主题.
	Topic() string
	// PhotoRef 返回事件关联的照片 ID.
	PhotoRef() uint
	// Correlation 返回关联 ID.
	Correlation() string
	// SetCorrelation 设置关联 ID.
	SetCorrelation(id string)
}

// base 事件公共字段.
type base struct {
	PhotoID       uint      `json:"photoId"`
	UserID        string    `json:"userId"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
}

func (b *base) PhotoRef() uint           { return b.PhotoID }
func (b *base) Correlation() string      { return b.CorrelationID }
func (b *base) SetCorrelation(id string) { b.CorrelationID = id }

// PhotoUploaded 原图已存储.
type PhotoUploaded struct {
	base
	StorageKey  string `json:"storageKey"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (*PhotoUploaded) EventName() string { return EventPhotoUploaded }
func (*PhotoUploaded) Topic() string     { return TopicPhotoUploaded }

// ProcessingStarted 开始处理.
type ProcessingStarted struct {
	base
}

func (*ProcessingStarted) EventName() string { return EventProcessingStarted }
func (*ProcessingStarted) Topic() string     { return TopicProcessingStarted }

// ProcessingCompleted 处理完成.
type ProcessingCompleted struct {
	base
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Metadata     string `json:"metadata"`
}

func (*ProcessingCompleted) EventName() string { return EventProcessingCompleted }
func (*ProcessingCompleted) Topic() string     { return TopicProcessingCompleted }

// ProcessingFailed 处理失败，WillRetry 表示是否已安排重试.
type ProcessingFailed struct {
	base
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
	RetryCount   int    `json:"retryCount"`
	WillRetry    bool   `json:"willRetry"`
}

func (*ProcessingFailed) EventName() string { return EventProcessingFailed }
func (*ProcessingFailed) Topic() string     { return TopicProcessingFailed }

// PhotoDeleted 照片被删除.
type PhotoDeleted struct {
	base
	StorageKey string `json:"storageKey"`
}

func (*PhotoDeleted) EventName() string { return EventPhotoDeleted }
func (*PhotoDeleted) Topic() string     { return TopicPhotoDeleted }

func newBase(photoID uint, userID, correlationID string) base {
	return base{PhotoID: photoID, UserID: userID, CorrelationID: correlationID, Timestamp: time.Now().UTC()}
}

// NewPhotoUploaded 构造 PhotoUploaded.
func NewPhotoUploaded(photoID uint, userID, storageKey, filename, contentType string, size int64, correlationID string) *PhotoUploaded {
	return &PhotoUploaded{
		base:        newBase(photoID, userID, correlationID),
		StorageKey:  storageKey,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}
}

// NewProcessingStarted 构造 ProcessingStarted.
func NewProcessingStarted(photoID uint, userID, correlationID string) *ProcessingStarted {
	return &ProcessingStarted{base: newBase(photoID, userID, correlationID)}
}

// NewProcessingCompleted 构造 ProcessingCompleted.
func NewProcessingCompleted(photoID uint, userID, thumbnailURL string, width, height int, metadata, correlationID string) *ProcessingCompleted {
	return &ProcessingCompleted{
		base:         newBase(photoID, userID, correlationID),
		ThumbnailURL: thumbnailURL,
		Width:        width,
		Height:       height,
		Metadata:     metadata,
	}
}

// NewProcessingFailed 构造 ProcessingFailed.
func NewProcessingFailed(photoID uint, userID, errorMessage, errorType string, retryCount int, willRetry bool, correlationID string) *ProcessingFailed {
	return &ProcessingFailed{
		base:         newBase(photoID, userID, correlationID),
		ErrorMessage: errorMessage,
		ErrorType:    errorType,
		RetryCount:   retryCount,
		WillRetry:    willRetry,
	}
}

// NewPhotoDeleted 构造 PhotoDeleted.
func NewPhotoDeleted(photoID uint, userID, storageKey, correlationID string) *PhotoDeleted {
	return &PhotoDeleted{base: newBase(photoID, userID, correlationID), StorageKey: storageKey}
}
