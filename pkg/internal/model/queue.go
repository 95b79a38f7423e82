package model

import (
	"time"

	"github.com/yeisme/photovault/pkg/internal/backoff"
)

// CommandType 回退队列命令类型.
type CommandType string

const (
	CommandProcessPhoto      CommandType = "PROCESS_PHOTO"
	CommandGenerateThumbnail CommandType = "GENERATE_THUMBNAIL"
	CommandExtractMetadata   CommandType = "EXTRACT_METADATA"
	CommandValidatePhoto     CommandType = "VALIDATE_PHOTO"
	CommandDeletePhoto       CommandType = "DELETE_PHOTO"
)

// QueueStatus 回退队列项状态.
type QueueStatus string

const (
	QueuePending    QueueStatus = "PENDING"
	QueueProcessing QueueStatus = "PROCESSING"
	QueueCompleted  QueueStatus = "COMPLETED"
	QueueFailed     QueueStatus = "FAILED"
	QueueDeadLetter QueueStatus = "DEAD_LETTER"
)

// ProcessingQueueItem 主事件通道不可用时持久化的待投递工作单元.
type ProcessingQueueItem struct {
	ID            uint        `gorm:"primaryKey"                     json:"id"`
	PhotoID       uint        `gorm:"index"                          json:"photo_id"`
	CommandType   CommandType `gorm:"size:32;index"                  json:"command_type"`
	Status        QueueStatus `gorm:"size:16;index:idx_queue_ready"  json:"status"`
	RetryCount    int         `gorm:"not null;default:0"             json:"retry_count"`
	MaxRetries    int         `gorm:"not null;default:3"             json:"max_retries"`
	NextRetryAt   *time.Time  `gorm:"index:idx_queue_ready"          json:"next_retry_at,omitempty"`
	LastError     string      `gorm:"type:text"                      json:"last_error,omitempty"`
	Topic         string      `gorm:"size:128"                       json:"topic"`
	EventType     string      `gorm:"size:64"                        json:"event_type"`
	Payload       string      `gorm:"type:text"                      json:"payload"`
	CorrelationID string      `gorm:"size:64;index"                  json:"correlation_id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CompletedAt   *time.Time  `gorm:"index"                          json:"completed_at,omitempty"`
}

// TableName 指定表名.
func (ProcessingQueueItem) TableName() string {
	return "processing_queue"
}

// IsReadyForProcessing 报告该项是否可被轮询处理.
func (q *ProcessingQueueItem) IsReadyForProcessing(now time.Time) bool {
	return q.Status == QueuePending && (q.NextRetryAt == nil || !q.NextRetryAt.After(now))
}

// MarkProcessing 标记为处理中.
func (q *ProcessingQueueItem) MarkProcessing() {
	q.Status = QueueProcessing
}

// MarkCompleted 标记为完成.
func (q *ProcessingQueueItem) MarkCompleted(now time.Time) {
	t := now
	q.Status = QueueCompleted
	q.CompletedAt = &t
	q.NextRetryAt = nil
	q.LastError = ""
}

// ScheduleRetry 记录失败并安排下一次重试；达到上限后进入死信，不再回到 PENDING.
func (q *ProcessingQueueItem) ScheduleRetry(cause error, now time.Time, policy backoff.Policy) {
	q.RetryCount++
	if cause != nil {
		q.LastError = cause.Error()
	}

	if q.RetryCount >= q.MaxRetries {
		q.Status = QueueDeadLetter
		q.NextRetryAt = nil

		return
	}

	next := now.Add(policy.Delay(q.RetryCount))
	q.Status = QueuePending
	q.NextRetryAt = &next
}

// Requeue 由运维显式将死信项放回队列.
func (q *ProcessingQueueItem) Requeue() {
	q.Status = QueuePending
	q.RetryCount = 0
	q.NextRetryAt = nil
	q.LastError = ""
}

// IsDeadLetter 报告该项是否已进入死信.
func (q *ProcessingQueueItem) IsDeadLetter() bool {
	return q.Status == QueueDeadLetter
}
