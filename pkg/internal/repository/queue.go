package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/model"
)

// GormQueueRepository 基于 gorm 的兜底队列仓储.
type GormQueueRepository struct {
	db *gorm.DB
}

// NewQueueRepository 创建队列仓储.
func NewQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

// Create 插入条目.
func (r *GormQueueRepository) Create(ctx context.Context, item *model.ProcessingQueueItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("enqueue %s for photo %d: %w", item.CommandType, item.PhotoID, err)
	}

	return nil
}

// Update 写回全部字段.
func (r *GormQueueRepository) Update(ctx context.Context, item *model.ProcessingQueueItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}

	return nil
}

// FindByID 按 ID 读取.
func (r *GormQueueRepository) FindByID(ctx context.Context, id uint) (*model.ProcessingQueueItem, error) {
	var item model.ProcessingQueueItem

	err := r.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFound{Resource: "queue item", ID: id}
	}

	if err != nil {
		return nil, fmt.Errorf("find queue item %d: %w", id, err)
	}

	return &item, nil
}

// FindReady 返回到期的 PENDING 条目.
func (r *GormQueueRepository) FindReady(ctx context.Context, now time.Time, limit int) ([]model.ProcessingQueueItem, error) {
	var items []model.ProcessingQueueItem

	q := r.db.WithContext(ctx).
		Where("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", model.QueuePending, now).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find ready queue items: %w", err)
	}

	return items, nil
}

// FindByStatus 按状态返回，最新的在前.
func (r *GormQueueRepository) FindByStatus(ctx context.Context, status model.QueueStatus, limit int) ([]model.ProcessingQueueItem, error) {
	var items []model.ProcessingQueueItem

	q := r.db.WithContext(ctx).Where("status = ?", status).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find %s queue items: %w", status, err)
	}

	return items, nil
}

// FindByPhoto 返回某张照片的全部条目.
func (r *GormQueueRepository) FindByPhoto(ctx context.Context, photoID uint) ([]model.ProcessingQueueItem, error) {
	var items []model.ProcessingQueueItem

	if err := r.db.WithContext(ctx).Where("photo_id = ?", photoID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find queue items of photo %d: %w", photoID, err)
	}

	return items, nil
}

// CountByStatus 统计各状态数量.
func (r *GormQueueRepository) CountByStatus(ctx context.Context) (map[model.QueueStatus]int64, error) {
	var rows []statusCount

	err := r.db.WithContext(ctx).Model(&model.ProcessingQueueItem{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count queue items by status: %w", err)
	}

	out := map[model.QueueStatus]int64{
		model.QueuePending:    0,
		model.QueueProcessing: 0,
		model.QueueCompleted:  0,
		model.QueueFailed:     0,
		model.QueueDeadLetter: 0,
	}
	for _, row := range rows {
		out[model.QueueStatus(row.Status)] = row.Total
	}

	return out, nil
}

// DeleteCompletedBefore 删除早于 before 完成的条目.
func (r *GormQueueRepository) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ? AND completed_at < ?", model.QueueCompleted, before).
		Delete(&model.ProcessingQueueItem{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete completed queue items: %w", tx.Error)
	}

	return tx.RowsAffected, nil
}
