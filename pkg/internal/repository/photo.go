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

// GormPhotoRepository 基于 gorm 的照片仓储.
type GormPhotoRepository struct {
	db *gorm.DB
}

// NewPhotoRepository 创建照片仓储.
func NewPhotoRepository(db *gorm.DB) *GormPhotoRepository {
	return &GormPhotoRepository{db: db}
}

// Create 插入新照片.
func (r *GormPhotoRepository) Create(ctx context.Context, p *model.Photo) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create photo: %w", err)
	}

	return nil
}

// Update 以 id 与 version 为条件更新全部字段.
func (r *GormPhotoRepository) Update(ctx context.Context, p *model.Photo) error {
	expected := p.Version
	p.Version++
	p.UpdatedAt = time.Now()

	tx := r.db.WithContext(ctx).
		Model(&model.Photo{}).
		Where("id = ? AND version = ?", p.ID, expected).
		Select("*").
		Omit("id", "uploaded_at").
		Updates(p)
	if tx.Error != nil {
		p.Version = expected

		return fmt.Errorf("update photo %d: %w", p.ID, tx.Error)
	}

	if tx.RowsAffected > 0 {
		return nil
	}

	p.Version = expected

	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Photo{}).Where("id = ?", p.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("update photo %d: %w", p.ID, err)
	}

	if n == 0 {
		return &errs.NotFound{Resource: "photo", ID: p.ID}
	}

	return errs.ErrVersionConflict
}

// FindByID 按 ID 读取.
func (r *GormPhotoRepository) FindByID(ctx context.Context, id uint) (*model.Photo, error) {
	var p model.Photo

	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFound{Resource: "photo", ID: id}
	}

	if err != nil {
		return nil, fmt.Errorf("find photo %d: %w", id, err)
	}

	return &p, nil
}

// FindByChecksum 按内容摘要读取.
func (r *GormPhotoRepository) FindByChecksum(ctx context.Context, checksum string) (*model.Photo, error) {
	var p model.Photo

	err := r.db.WithContext(ctx).Where("checksum = ?", checksum).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFound{Resource: "photo", ID: checksum}
	}

	if err != nil {
		return nil, fmt.Errorf("find photo by checksum: %w", err)
	}

	return &p, nil
}

// Delete 硬删除.
func (r *GormPhotoRepository) Delete(ctx context.Context, id uint) error {
	tx := r.db.WithContext(ctx).Delete(&model.Photo{}, id)
	if tx.Error != nil {
		return fmt.Errorf("delete photo %d: %w", id, tx.Error)
	}

	if tx.RowsAffected == 0 {
		return &errs.NotFound{Resource: "photo", ID: id}
	}

	return nil
}

func (r *GormPhotoRepository) page(ctx context.Context, page Page, where string, args ...any) ([]model.Photo, int64, error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&model.Photo{}).Where(where, args...)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count photos: %w", err)
	}

	photos := make([]model.Photo, 0, page.Size)
	if err := q.Order("uploaded_at DESC, id DESC").Offset(page.Offset()).Limit(page.Size).Find(&photos).Error; err != nil {
		return nil, 0, fmt.Errorf("list photos: %w", err)
	}

	return photos, total, nil
}

// ListByUser 按上传时间倒序分页.
func (r *GormPhotoRepository) ListByUser(ctx context.Context, userID string, page Page) ([]model.Photo, int64, error) {
	return r.page(ctx, page, "user_id = ?", userID)
}

// ListByStatus 按状态分页.
func (r *GormPhotoRepository) ListByStatus(ctx context.Context, status model.PhotoStatus, page Page) ([]model.Photo, int64, error) {
	return r.page(ctx, page, "status = ?", status)
}

// ListByUserAndStatus 按用户与状态分页.
func (r *GormPhotoRepository) ListByUserAndStatus(ctx context.Context, userID string, status model.PhotoStatus, page Page) ([]model.Photo, int64, error) {
	return r.page(ctx, page, "user_id = ? AND status = ?", userID, status)
}

type statusCount struct {
	Status string
	Total  int64
}

// CountByStatus 统计各状态数量，缺失的状态计为 0.
func (r *GormPhotoRepository) CountByStatus(ctx context.Context) (map[model.PhotoStatus]int64, error) {
	var rows []statusCount

	err := r.db.WithContext(ctx).Model(&model.Photo{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count photos by status: %w", err)
	}

	out := make(map[model.PhotoStatus]int64, len(model.AllStatuses()))
	for _, s := range model.AllStatuses() {
		out[s] = 0
	}

	for _, row := range rows {
		out[model.PhotoStatus(row.Status)] = row.Total
	}

	return out, nil
}

// FindStuck 返回长时间未推进的照片.
func (r *GormPhotoRepository) FindStuck(ctx context.Context, statuses []model.PhotoStatus, before time.Time, limit int) ([]model.Photo, error) {
	var photos []model.Photo

	q := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, before).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("find stuck photos: %w", err)
	}

	return photos, nil
}
