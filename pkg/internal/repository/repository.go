// Package repository 封装照片、事件与兜底队列的 gorm 持久化.
//
// 照片记录只能通过 PhotoRepository.Update 修改，Update 带版本条件执行并递增 version，
// 未命中时返回 errs.ErrVersionConflict；事件表只追加不修改.
package repository

import (
	"context"
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page 分页参数，页码从 0 开始.
type Page struct {
	Number int
	Size   int
}

// Normalize 修正越界的分页参数.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}

	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}

	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}

	return p
}

// Offset 返回偏移量.
func (p Page) Offset() int {
	n := p.Normalize()

	return n.Number * n.Size
}

// PhotoRepository 照片记录.
type PhotoRepository interface {
	Create(ctx context.Context, p *model.Photo) error
	// Update 以乐观锁写回整条记录，成功后 p.Version 递增.
	Update(ctx context.Context, p *model.Photo) error
	FindByID(ctx context.Context, id uint) (*model.Photo, error)
	FindByChecksum(ctx context.Context, checksum string) (*model.Photo, error)
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID string, page Page) ([]model.Photo, int64, error)
	ListByStatus(ctx context.Context, status model.PhotoStatus, page Page) ([]model.Photo, int64, error)
	ListByUserAndStatus(ctx context.Context, userID string, status model.PhotoStatus, page Page) ([]model.Photo, int64, error)
	CountByStatus(ctx context.Context) (map[model.PhotoStatus]int64, error)
	// FindStuck 返回处于 statuses 且在 before 之后未更新的照片.
	FindStuck(ctx context.Context, statuses []model.PhotoStatus, before time.Time, limit int) ([]model.Photo, error)
}

// EventRepository 照片审计事件，只追加.
type EventRepository interface {
	Append(ctx context.Context, e *model.PhotoEvent) error
	// ListByPhoto 按时间升序返回.
	ListByPhoto(ctx context.Context, photoID uint) ([]model.PhotoEvent, error)
	// PageByPhoto 按时间降序分页返回.
	PageByPhoto(ctx context.Context, photoID uint, page Page) ([]model.PhotoEvent, int64, error)
	ListByCorrelation(ctx context.Context, correlationID string) ([]model.PhotoEvent, error)
	CountByType(ctx context.Context) (map[model.EventType]int64, error)
}

// QueueRepository 兜底队列.
type QueueRepository interface {
	Create(ctx context.Context, item *model.ProcessingQueueItem) error
	Update(ctx context.Context, item *model.ProcessingQueueItem) error
	FindByID(ctx context.Context, id uint) (*model.ProcessingQueueItem, error)
	// FindReady 返回已到重试时间的 PENDING 条目，按创建顺序.
	FindReady(ctx context.Context, now time.Time, limit int) ([]model.ProcessingQueueItem, error)
	FindByStatus(ctx context.Context, status model.QueueStatus, limit int) ([]model.ProcessingQueueItem, error)
	FindByPhoto(ctx context.Context, photoID uint) ([]model.ProcessingQueueItem, error)
	CountByStatus(ctx context.Context) (map[model.QueueStatus]int64, error)
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)
}
