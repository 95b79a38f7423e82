package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/internal/types"
	"github.com/yeisme/photovault/pkg/internal/worker"
	"github.com/yeisme/photovault/pkg/queue"
)

const (
	// VariantOriginal 原图.
	VariantOriginal = "original"
	// VariantThumbnail 缩略图.
	VariantThumbnail = "thumbnail"

	sweepBatch = 100
)

// Processor 照片处理调度，由 Orchestrator 实现.
type Processor interface {
	Submitter
	Cancel(photoID uint) bool
	HasPendingRetry(photoID uint) bool
	InFlight(photoID uint) bool
}

// ListQuery 列表条件，UserID 与 Status 至少一个非空.
type ListQuery struct {
	UserID string
	Status string
	Page   repository.Page
}

// PhotoService 照片查询、删除与手动重试.
type PhotoService struct {
	photos     repository.PhotoRepository
	events     repository.EventRepository
	queue      repository.QueueRepository
	audit      *auditor
	blob       blob.Storage
	publisher  events.Publisher
	processor  Processor
	pool       *worker.Pool
	cache      *cache.Cache
	resilience *resilience.Registry
	cfg        configs.PhotoConfig
	presignTTL time.Duration
	now        func() time.Time
}

// NewPhotoService 创建照片服务.
func NewPhotoService(d Deps, processor Processor) *PhotoService {
	ttl := d.PresignTTL
	if ttl <= 0 {
		ttl = configs.DefaultPresignTTL
	}

	return &PhotoService{
		photos:     d.Photos,
		events:     d.Events,
		queue:      d.Queue,
		audit:      &auditor{events: d.Events, cache: d.Cache},
		blob:       d.Blob,
		publisher:  d.Publisher,
		processor:  processor,
		pool:       d.Pool,
		cache:      d.Cache,
		resilience: d.Resilience,
		cfg:        d.Photo,
		presignTTL: ttl,
		now:        time.Now,
	}
}

// Get 读取照片，命中缓存时不访问数据库.
func (s *PhotoService) Get(ctx context.Context, id uint) (*model.Photo, error) {
	if s.cache == nil {
		return s.photos.FindByID(ctx, id)
	}

	p, err := cache.GetOrSet(ctx, s.cache, cache.PhotoKey(id), func() (model.Photo, error) {
		p, err := s.photos.FindByID(ctx, id)
		if err != nil {
			return model.Photo{}, err
		}

		return *p, nil
	}, s.cfg.CacheTTL)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// List 按用户和/或状态分页列出照片.
func (s *PhotoService) List(ctx context.Context, q ListQuery) ([]model.Photo, int64, repository.Page, error) {
	page := q.Page.Normalize()

	var status model.PhotoStatus

	if q.Status != "" {
		st, ok := model.ParseStatus(q.Status)
		if !ok {
			return nil, 0, page, &errs.ValidationError{Field: "status", Message: "unknown status " + q.Status}
		}

		status = st
	}

	var (
		list  []model.Photo
		total int64
		err   error
	)

	switch {
	case q.UserID != "" && status != "":
		list, total, err = s.photos.ListByUserAndStatus(ctx, q.UserID, status, page)
	case q.UserID != "":
		list, total, err = s.photos.ListByUser(ctx, q.UserID, page)
	case status != "":
		list, total, err = s.photos.ListByStatus(ctx, status, page)
	default:
		return nil, 0, page, &errs.ValidationError{Field: "userId", Message: "userId or status is required"}
	}

	return list, total, page, err
}

// Events 返回照片的全部审计事件（时间升序）.
func (s *PhotoService) Events(ctx context.Context, id uint) ([]model.PhotoEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if s.cache == nil {
		return s.events.ListByPhoto(ctx, id)
	}

	return cache.GetOrSet(ctx, s.cache, cache.PhotoEventsKey(id), func() ([]model.PhotoEvent, error) {
		return s.events.ListByPhoto(ctx, id)
	}, s.cfg.EventCacheTTL)
}

// EventsPaged 分页返回照片事件（时间降序）.
func (s *PhotoService) EventsPaged(ctx context.Context, id uint, page repository.Page) ([]model.PhotoEvent, int64, repository.Page, error) {
	page = page.Normalize()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, page, err
	}

	list, total, err := s.events.PageByPhoto(ctx, id, page)

	return list, total, page, err
}

// CorrelationEvents 返回同一关联 ID 下的全部事件.
func (s *PhotoService) CorrelationEvents(ctx context.Context, correlationID string) ([]model.PhotoEvent, error) {
	if correlationID == "" {
		return nil, &errs.ValidationError{Field: "correlationId", Message: "required"}
	}

	return s.events.ListByCorrelation(ctx, correlationID)
}

// Delete 删除照片：停止等待中的重试，尽力删除对象，删除记录并发布 PhotoDeleted.
// 进行中的分支不会被中断，它们在汇合后因记录不存在而结束.
func (s *PhotoService) Delete(ctx context.Context, id uint) error {
	ctx, cid := ctxPkg.EnsureCorrelationID(ctx)
	l := ctxPkg.Logger(ctx).With().Uint("photo_id", id).Logger()

	p, err := s.photos.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if s.processor != nil && s.processor.Cancel(id) {
		l.Info().Msg("pending retry cancelled")
	}

	for _, key := range []string{p.StorageKey, p.ThumbnailKey} {
		if key == "" {
			continue
		}

		if _, err := s.blob.Delete(ctx, key); err != nil {
			l.Warn().Err(err).Str("key", key).Msg("delete object failed")
		}
	}

	if err := s.photos.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.record(ctx, p, model.EventDeleted, true, p.StorageKey, "")
	publish(ctx, s.publisher, queue.TopicPhotoDeleted, queue.NewPhotoDeleted(p.ID, p.UserID, p.StorageKey, cid), cid)
	evict(ctx, s.cache, id)

	l.Info().Msg("photo deleted")

	return nil
}

// Retry 手动重试 FAILED 照片，返回本次处理的关联 ID.
//
// 只有原图已写入存储且未超过累计尝试上限时才允许；照片回到 PENDING 后由编排器重新走上传确认与处理.
func (s *PhotoService) Retry(ctx context.Context, id uint) (*model.Photo, string, error) {
	ctx, cid := ctxPkg.EnsureCorrelationID(ctx)

	p, err := s.photos.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if p.Status != model.StatusFailed {
		return nil, "", &errs.Conflict{Message: fmt.Sprintf("photo %d is %s, only FAILED photos can be retried", id, p.Status)}
	}

	if s.cfg.MaxTotalAttempts > 0 && p.TotalAttempts >= s.cfg.MaxTotalAttempts {
		return nil, "", &errs.Conflict{
			Message: fmt.Sprintf("photo %d reached %d processing attempts", id, p.TotalAttempts),
		}
	}

	if p.StorageKey == "" {
		return nil, "", &errs.Conflict{Message: fmt.Sprintf("photo %d has no stored original, upload again", id)}
	}

	exists, err := s.blob.Exists(ctx, p.StorageKey)
	if err != nil {
		return nil, "", err
	}

	if !exists {
		return nil, "", &errs.Conflict{Message: fmt.Sprintf("original of photo %d is missing, upload again", id)}
	}

	p, err = mutatePhoto(ctx, s.photos, p, s.cfg.MaxConflictReload, func(p *model.Photo) error {
		if err := transition(ctx, p, model.StatusPending, s.now()); err != nil {
			return err
		}

		p.RetryCount = 0
		p.LastError = ""

		return nil
	})
	if err != nil {
		return nil, "", err
	}

	evict(ctx, s.cache, id)
	s.audit.record(ctx, p, model.EventRetryScheduled, true, "manual retry", "")

	if s.processor != nil {
		s.processor.Submit(ctx, id, cid)
	}

	return p, cid, nil
}

// DownloadURL 返回原图或缩略图的限时访问地址.
func (s *PhotoService) DownloadURL(ctx context.Context, id uint, variant string) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	var key string

	switch variant {
	case "", VariantOriginal:
		key = p.StorageKey
	case VariantThumbnail:
		key = p.ThumbnailKey
	default:
		return "", &errs.ValidationError{Field: "variant", Message: "must be original or thumbnail"}
	}

	if key == "" {
		return "", &errs.NotFound{Resource: variant + " object of photo", ID: id}
	}

	return s.blob.Presign(ctx, key, s.presignTTL)
}

// Stats 汇总照片、兜底队列、事件与运行时组件状态.
func (s *PhotoService) Stats(ctx context.Context) (*types.StatsResponse, error) {
	photos, err := s.photos.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	resp := &types.StatsResponse{
		Photos:    make(map[string]int64, len(photos)),
		Queue:     map[string]int64{},
		Events:    map[string]int64{},
		Publisher: events.ProviderNone,
	}

	for _, st := range model.AllStatuses() {
		resp.Photos[string(st)] = photos[st]
	}

	if s.queue != nil {
		counts, err := s.queue.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}

		for st, n := range counts {
			resp.Queue[string(st)] = n
		}
	}

	counts, err := s.events.CountByType(ctx)
	if err != nil {
		return nil, err
	}

	for typ, n := range counts {
		resp.Events[string(typ)] = n
	}

	if s.publisher != nil {
		resp.Publisher = s.publisher.ProviderType()
		resp.PublisherAvailable = s.publisher.IsAvailable(ctx)
	}

	if s.resilience != nil {
		for _, b := range s.resilience.States() {
			resp.Breakers = append(resp.Breakers, types.BreakerStatus{Name: b.Name, State: b.State})
		}
	}

	if s.pool != nil {
		st := s.pool.Stats()
		resp.Worker = &types.WorkerStatus{
			Workers:    st.Workers,
			Active:     st.Active,
			Queued:     st.Queued,
			CallerRuns: st.CallerRuns,
		}
	}

	return resp, nil
}

// Sweep 重新提交长时间停留在 UPLOADED、PROCESSING 或 RETRYING 且本进程没有计时器的照片，返回提交数量.
// PROCESSING 照片（进程中断或处理被取消后遗留）先回到 RETRYING 再提交.
func (s *PhotoService) Sweep(ctx context.Context) (int, error) {
	if s.processor == nil {
		return 0, nil
	}

	before := s.now().Add(-s.cfg.StuckAfter())
	statuses := []model.PhotoStatus{model.StatusUploaded, model.StatusProcessing, model.StatusRetrying}

	stuck, err := s.photos.FindStuck(ctx, statuses, before, sweepBatch)
	if err != nil {
		return 0, err
	}

	n := 0

	for i := range stuck {
		p := &stuck[i]
		if s.processor.HasPendingRetry(p.ID) || s.processor.InFlight(p.ID) {
			continue
		}

		cid := ctxPkg.NewCorrelationID()
		cctx := ctxPkg.WithCorrelationID(ctx, cid)
		l := ctxPkg.Logger(cctx).With().Uint("photo_id", p.ID).Str("status", string(p.Status)).Logger()

		if p.Status == model.StatusProcessing {
			if err := s.release(cctx, p); err != nil {
				l.Warn().Err(err).Msg("release stuck processing photo failed")

				continue
			}
		}

		l.Info().Msg("resubmitting stuck photo")

		s.processor.Submit(cctx, p.ID, cid)
		n++
	}

	return n, nil
}

// release 把遗留在 PROCESSING 的照片退回 RETRYING，不计入重试次数.
func (s *PhotoService) release(ctx context.Context, p *model.Photo) error {
	released, err := mutatePhoto(ctx, s.photos, p, s.cfg.MaxConflictReload, func(p *model.Photo) error {
		if err := transition(ctx, p, model.StatusRetrying, s.now()); err != nil {
			return err
		}

		p.LastError = "processing interrupted"

		return nil
	})
	if err != nil {
		return err
	}

	evict(ctx, s.cache, p.ID)
	s.audit.record(ctx, released, model.EventRetryScheduled, true, "recovered from interrupted processing", "")

	return nil
}

// PurgeObjects 是 DELETE_PHOTO 兜底队列项的处理函数，再次删除原图与可能的缩略图.
// 对象已不存在视为成功.
func (s *PhotoService) PurgeObjects(ctx context.Context, item *model.ProcessingQueueItem, evt queue.Event) error {
	deleted, ok := evt.(*queue.PhotoDeleted)
	if !ok {
		return fmt.Errorf("unexpected event %s for %s", evt.EventName(), item.CommandType)
	}

	if deleted.StorageKey == "" {
		return nil
	}

	keys := []string{
		deleted.StorageKey,
		model.ThumbnailKeyFor(deleted.StorageKey, ""),
		model.ThumbnailKeyFor(deleted.StorageKey, ".jpg"),
		model.ThumbnailKeyFor(deleted.StorageKey, ".png"),
	}

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		if _, err := s.blob.Delete(ctx, key); err != nil {
			return err
		}
	}

	return nil
}
