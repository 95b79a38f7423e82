package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeisme/photovault/pkg/internal/model"
)

// GormEventRepository 基于 gorm 的事件仓储，没有修改与删除方法.
type GormEventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储.
func NewEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Append 追加一条事件.
func (r *GormEventRepository) Append(ctx context.Context, e *model.PhotoEvent) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("append %s event for photo %d: %w", e.EventType, e.PhotoID, err)
	}

	return nil
}

// ListByPhoto 按时间升序返回.
func (r *GormEventRepository) ListByPhoto(ctx context.Context, photoID uint) ([]model.PhotoEvent, error) {
	var events []model.PhotoEvent

	err := r.db.WithContext(ctx).
		Where("photo_id = ?", photoID).
		Order("timestamp ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events of photo %d: %w", photoID, err)
	}

	return events, nil
}

// PageByPhoto 按时间降序分页.
func (r *GormEventRepository) PageByPhoto(ctx context.Context, photoID uint, page Page) ([]model.PhotoEvent, int64, error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&model.PhotoEvent{}).Where("photo_id = ?", photoID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count events of photo %d: %w", photoID, err)
	}

	events := make([]model.PhotoEvent, 0, page.Size)
	if err := q.Order("timestamp DESC, id DESC").Offset(page.Offset()).Limit(page.Size).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("page events of photo %d: %w", photoID, err)
	}

	return events, total, nil
}

// ListByCorrelation 返回同一关联 ID 下的全部事件.
func (r *GormEventRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]model.PhotoEvent, error) {
	var events []model.PhotoEvent

	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("timestamp ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events of correlation %s: %w", correlationID, err)
	}

	return events, nil
}

type typeCount struct {
	EventType string
	Total     int64
}

// CountByType 统计各事件类型数量.
func (r *GormEventRepository) CountByType(ctx context.Context) (map[model.EventType]int64, error) {
	var rows []typeCount

	err := r.db.WithContext(ctx).Model(&model.PhotoEvent{}).
		Select("event_type, COUNT(*) AS total").
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}

	out := make(map[model.EventType]int64, len(rows))
	for _, row := range rows {
		out[model.EventType(row.EventType)] = row.Total
	}

	return out, nil
}
