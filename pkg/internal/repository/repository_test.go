package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func newPhoto(user, sum string) *model.Photo {
	return &model.Photo{
		UserID:           user,
		OriginalFileName: "cat.jpg",
		ContentType:      "image/jpeg",
		FileSize:         10,
		Checksum:         &sum,
		Status:           model.StatusPending,
	}
}

func TestPhotoRepository_OptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPhotoRepository(openDB(t))

	p := newPhoto("alice", "sum-1")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale, err := repo.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	p.Status = model.StatusUploading
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if p.Version != 1 {
		t.Errorf("version = %d, want 1", p.Version)
	}

	stale.Status = model.StatusFailed
	if err := repo.Update(ctx, stale); !errors.Is(err, errs.ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}

	if stale.Version != 0 {
		t.Errorf("stale version changed to %d", stale.Version)
	}

	got, _ := repo.FindByID(ctx, p.ID)
	if got.Status != model.StatusUploading || got.Version != 1 {
		t.Errorf("stored %s v%d", got.Status, got.Version)
	}
}

func TestPhotoRepository_UpdateClearsFields(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPhotoRepository(openDB(t))

	p := newPhoto("alice", "sum-2")
	p.StorageKey = "photos/alice/1/x.jpg"
	_ = repo.Create(ctx, p)

	p.StorageKey = ""
	p.Checksum = nil
	p.Status = model.StatusFailed

	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := repo.FindByID(ctx, p.ID)
	if got.StorageKey != "" || got.Checksum != nil {
		t.Errorf("zero values not written: key=%q checksum=%v", got.StorageKey, got.Checksum)
	}

	if _, err := repo.FindByChecksum(ctx, "sum-2"); !errs.IsNotFound(err) {
		t.Errorf("released checksum still found: %v", err)
	}
}

func TestPhotoRepository_UpdateDeletedIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPhotoRepository(openDB(t))

	p := newPhoto("alice", "sum-3")
	_ = repo.Create(ctx, p)

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := repo.Update(ctx, p); !errs.IsNotFound(err) {
		t.Errorf("err = %v, want NotFound", err)
	}

	if err := repo.Delete(ctx, p.ID); !errs.IsNotFound(err) {
		t.Errorf("second delete err = %v, want NotFound", err)
	}
}

func TestPhotoRepository_ChecksumUnique(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPhotoRepository(openDB(t))

	if err := repo.Create(ctx, newPhoto("alice", "same")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Create(ctx, newPhoto("bob", "same")); err == nil {
		t.Error("duplicate checksum should violate the unique index")
	}

	a, b := newPhoto("a", ""), newPhoto("b", "")
	a.Checksum, b.Checksum = nil, nil

	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create nil checksum: %v", err)
	}

	if err := repo.Create(ctx, b); err != nil {
		t.Errorf("two released checksums should coexist: %v", err)
	}
}

func TestPhotoRepository_ListsAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPhotoRepository(openDB(t))

	for i, user := range []string{"alice", "alice", "bob"} {
		p := newPhoto(user, string(rune('a'+i)))
		_ = repo.Create(ctx, p)

		if user == "bob" {
			p.Status = model.StatusUploading
			_ = repo.Update(ctx, p)
		}
	}

	photos, total, err := repo.ListByUser(ctx, "alice", repository.Page{Size: 1})
	if err != nil || total != 2 || len(photos) != 1 {
		t.Errorf("ListByUser = %d items, total %d, err %v", len(photos), total, err)
	}

	photos, total, _ = repo.ListByStatus(ctx, model.StatusUploading, repository.Page{})
	if total != 1 || photos[0].UserID != "bob" {
		t.Errorf("ListByStatus total %d", total)
	}

	_, total, _ = repo.ListByUserAndStatus(ctx, "alice", model.StatusUploading, repository.Page{})
	if total != 0 {
		t.Errorf("ListByUserAndStatus total %d", total)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}

	if counts[model.StatusPending] != 2 || counts[model.StatusUploading] != 1 || counts[model.StatusCompleted] != 0 {
		t.Errorf("counts = %v", counts)
	}

	stuck, _ := repo.FindStuck(ctx, []model.PhotoStatus{model.StatusUploading}, time.Now().Add(time.Minute), 10)
	if len(stuck) != 1 {
		t.Errorf("FindStuck = %d", len(stuck))
	}

	stuck, _ = repo.FindStuck(ctx, []model.PhotoStatus{model.StatusUploading}, time.Now().Add(-time.Hour), 10)
	if len(stuck) != 0 {
		t.Errorf("recently updated photos reported stuck: %d", len(stuck))
	}
}

func TestEventRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEventRepository(openDB(t))
	base := time.Now().Add(-time.Hour)

	for i, et := range []model.EventType{model.EventUploadStarted, model.EventUploaded, model.EventProcessingStarted} {
		e := &model.PhotoEvent{
			PhotoID:       1,
			EventType:     et,
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			Success:       true,
			CorrelationID: "cid",
		}
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	_ = repo.Append(ctx, &model.PhotoEvent{PhotoID: 2, EventType: model.EventUploaded, CorrelationID: "other"})

	asc, _ := repo.ListByPhoto(ctx, 1)
	if len(asc) != 3 || asc[0].EventType != model.EventUploadStarted || asc[2].EventType != model.EventProcessingStarted {
		t.Errorf("ascending order wrong: %v", asc)
	}

	desc, total, _ := repo.PageByPhoto(ctx, 1, repository.Page{Number: 0, Size: 2})
	if total != 3 || len(desc) != 2 || desc[0].EventType != model.EventProcessingStarted {
		t.Errorf("descending page wrong: total=%d %v", total, desc)
	}

	byCid, _ := repo.ListByCorrelation(ctx, "cid")
	if len(byCid) != 3 {
		t.Errorf("ListByCorrelation = %d", len(byCid))
	}

	counts, _ := repo.CountByType(ctx)
	if counts[model.EventUploaded] != 2 {
		t.Errorf("counts = %v", counts)
	}
}

func TestQueueRepository_ReadyAndCleanup(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewQueueRepository(openDB(t))
	now := time.Now()
	later := now.Add(time.Hour)
	old := now.Add(-48 * time.Hour)

	items := []*model.ProcessingQueueItem{
		{PhotoID: 1, CommandType: model.CommandProcessPhoto, Status: model.QueuePending, MaxRetries: 3},
		{PhotoID: 2, CommandType: model.CommandProcessPhoto, Status: model.QueuePending, MaxRetries: 3, NextRetryAt: &later},
		{PhotoID: 3, CommandType: model.CommandDeletePhoto, Status: model.QueueCompleted, MaxRetries: 3, CompletedAt: &old},
		{PhotoID: 4, CommandType: model.CommandProcessPhoto, Status: model.QueueDeadLetter, MaxRetries: 3},
	}
	for _, it := range items {
		if err := repo.Create(ctx, it); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	ready, err := repo.FindReady(ctx, now, 10)
	if err != nil {
		t.Fatalf("FindReady: %v", err)
	}

	if len(ready) != 1 || ready[0].PhotoID != 1 {
		t.Errorf("ready = %v", ready)
	}

	counts, _ := repo.CountByStatus(ctx)
	if counts[model.QueuePending] != 2 || counts[model.QueueDeadLetter] != 1 {
		t.Errorf("counts = %v", counts)
	}

	n, err := repo.DeleteCompletedBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Errorf("DeleteCompletedBefore = %d, %v", n, err)
	}

	if _, err := repo.FindByID(ctx, items[2].ID); !errs.IsNotFound(err) {
		t.Errorf("completed item should be gone: %v", err)
	}

	dead, _ := repo.FindByStatus(ctx, model.QueueDeadLetter, 0)
	dead[0].Requeue()

	if err := repo.Update(ctx, &dead[0]); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ready, _ = repo.FindReady(ctx, now, 10)
	if len(ready) != 2 {
		t.Errorf("requeued item not ready: %d", len(ready))
	}
}
