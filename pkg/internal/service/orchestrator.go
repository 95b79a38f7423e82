package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/backoff"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/imaging"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/internal/worker"
	"github.com/yeisme/photovault/pkg/metrics"
	"github.com/yeisme/photovault/pkg/queue"
	"github.com/yeisme/photovault/pkg/tracing"
)

const (
	// emptyMetadata 元数据提取失败时写入的值.
	emptyMetadata = "{}"
	// settleTimeout 汇合后写入结果、审计与事件的时限，不受处理 ctx 取消影响.
	settleTimeout = 30 * time.Second
)

// Submitter 异步提交照片处理.
type Submitter interface {
	Submit(ctx context.Context, photoID uint, correlationID string)
}

// Orchestrator 照片处理编排.
//
// 一次处理：PROCESSING -> 并行生成缩略图与提取元数据 -> COMPLETED；
// 缩略图失败时进入 RETRYING 并登记 backoff 计时器，到期后重新提交到工作池，重试次数用尽后进入 FAILED.
// 元数据失败只写入 "{}"，不影响结果.
type Orchestrator struct {
	photos    repository.PhotoRepository
	audit     *auditor
	blob      blob.Storage
	publisher events.Publisher
	pool      *worker.Pool
	cache     *cache.Cache
	renderer  *imaging.Renderer
	cfg       configs.PhotoConfig
	policy    backoff.Policy
	now       func() time.Time

	life     context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	timers   map[uint]*pendingRetry
	inflight map[uint]int
}

// pendingRetry 一个等待中的重试计时器.
type pendingRetry struct {
	timer *time.Timer
}

func (r *pendingRetry) stop() {
	r.timer.Stop()
}

// derived 两个分支的产出.
type derived struct {
	thumbKey string
	thumbURL string
	width    int
	height   int
	metadata string
}

// NewOrchestrator 创建编排器.
func NewOrchestrator(d Deps) *Orchestrator {
	life, shutdown := context.WithCancel(context.Background())

	return &Orchestrator{
		photos:    d.Photos,
		audit:     &auditor{events: d.Events, cache: d.Cache},
		blob:      d.Blob,
		publisher: d.Publisher,
		pool:      d.Pool,
		cache:     d.Cache,
		renderer:  imaging.NewRenderer(d.Photo.Thumbnail),
		cfg:       d.Photo,
		policy:    backoff.New(d.Photo.RetryBase()),
		now:       time.Now,
		life:      life,
		shutdown:  shutdown,
		timers:    make(map[uint]*pendingRetry),
		inflight:  make(map[uint]int),
	}
}

// Submit 在工作池上执行 Process.处理与请求生命周期解耦，只随 Close 取消.
func (o *Orchestrator) Submit(ctx context.Context, photoID uint, correlationID string) {
	l := ctxPkg.Logger(ctx)

	detached := context.WithoutCancel(ctx)

	err := o.pool.Submit(func() {
		sagaCtx, cancel := context.WithCancel(detached)
		defer cancel()

		stop := context.AfterFunc(o.life, cancel)
		defer stop()

		if err := o.Process(sagaCtx, photoID, correlationID); err != nil {
			l.Error().Err(err).Uint("photo_id", photoID).Msg("photo processing aborted")
		}
	})
	if err != nil {
		l.Error().Err(err).Uint("photo_id", photoID).Msg("submit photo processing failed")
	}
}

// Process 同步执行一次处理.需要重试时登记计时器后立即返回，不占用调用方等待 backoff.
// 照片不存在、已完成或不处于可处理状态时直接返回 nil.
func (o *Orchestrator) Process(ctx context.Context, photoID uint, correlationID string) error {
	ctx = ctxPkg.WithCorrelationID(ctx, correlationID)

	o.track(photoID, 1)
	defer o.track(photoID, -1)

	delay, again, err := o.attempt(ctx, photoID, correlationID)
	if err != nil || !again {
		return err
	}

	o.schedule(ctx, photoID, correlationID, delay)

	return nil
}

func (o *Orchestrator) track(photoID uint, delta int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n := o.inflight[photoID] + delta; n > 0 {
		o.inflight[photoID] = n
	} else {
		delete(o.inflight, photoID)
	}
}

// InFlight 报告照片是否正在本进程内处理.
func (o *Orchestrator) InFlight(photoID uint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.inflight[photoID] > 0
}

// Cancel 停止照片等待中的重试，返回是否存在该计时器.
func (o *Orchestrator) Cancel(photoID uint) bool {
	o.mu.Lock()
	r, ok := o.timers[photoID]
	delete(o.timers, photoID)
	o.mu.Unlock()

	if ok {
		r.stop()
	}

	return ok
}

// HasPendingRetry 报告照片是否有等待中的重试.
func (o *Orchestrator) HasPendingRetry(photoID uint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.timers[photoID]

	return ok
}

// PendingRetries 返回等待中的重试数量.
func (o *Orchestrator) PendingRetries() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.timers)
}

// Close 取消全部等待中的重试与进行中的处理.
func (o *Orchestrator) Close() {
	o.shutdown()

	o.mu.Lock()
	timers := o.timers
	o.timers = make(map[uint]*pendingRetry)
	o.mu.Unlock()

	for _, r := range timers {
		r.stop()
	}
}

// Resume 兜底队列重放 PROCESS_PHOTO 时调用；已有等待中的重试则交给计时器.
func (o *Orchestrator) Resume(ctx context.Context, item *model.ProcessingQueueItem, _ queue.Event) error {
	if o.HasPendingRetry(item.PhotoID) {
		return nil
	}

	o.Submit(ctx, item.PhotoID, item.CorrelationID)

	return nil
}

// schedule 登记 d 之后的重入；同一照片只保留最新的计时器，Close 之后不再登记.
func (o *Orchestrator) schedule(ctx context.Context, photoID uint, correlationID string, d time.Duration) {
	ctx = context.WithoutCancel(ctx)
	r := &pendingRetry{}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.life.Err() != nil {
		return
	}

	if prev, ok := o.timers[photoID]; ok {
		prev.stop()
	}

	o.timers[photoID] = r
	r.timer = time.AfterFunc(d, func() {
		o.mu.Lock()
		current := o.timers[photoID] == r
		if current {
			delete(o.timers, photoID)
		}
		o.mu.Unlock()

		if current && o.life.Err() == nil {
			o.Submit(ctx, photoID, correlationID)
		}
	})
}

// settle 返回不随处理 ctx 取消的收尾 ctx.
func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// attempt 执行一次处理，返回下一次重试前的等待时长与是否需要重试.
func (o *Orchestrator) attempt(ctx context.Context, photoID uint, correlationID string) (time.Duration, bool, error) {
	start := time.Now()

	var stageErr error

	ctx, span := tracing.StartSpan(ctx, "photo.saga", trace.WithAttributes(tracing.PhotoAttr(photoID)))
	defer func() { tracing.EndSpan(span, stageErr) }()

	l := ctxPkg.Logger(ctx).With().Uint("photo_id", photoID).Logger()

	p, err := o.photos.FindByID(ctx, photoID)
	if err != nil {
		return 0, false, stopQuietly(err)
	}

	p, ok, err := o.prepare(ctx, p)
	if err != nil || !ok {
		return 0, false, stopQuietly(err)
	}

	started, err := o.mutate(ctx, p, func(p *model.Photo) error {
		return transition(ctx, p, model.StatusProcessing, o.now())
	})
	if err != nil {
		if err = stopQuietly(err); err != nil {
			// 照片停留在原状态，由 sweep 重新提交
			o.audit.record(ctx, p, model.EventProcessingStarted, false, "", err.Error())
			l.Error().Err(err).Msg("persist processing transition failed")
		}

		return 0, false, err
	}

	p = started

	evict(ctx, o.cache, p.ID)
	o.audit.record(ctx, p, model.EventProcessingStarted, true, fmt.Sprintf("attempt %d", p.TotalAttempts+1), "")
	publish(ctx, o.publisher, queue.TopicProcessingStarted, queue.NewProcessingStarted(p.ID, p.UserID, correlationID), correlationID)

	res, stageErr := o.derive(ctx, p)

	settleCtx, cancel := settle(ctx)
	defer cancel()

	if stageErr == nil {
		err := o.complete(settleCtx, photoID, correlationID, res)
		metrics.SagaDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
		l.Info().Dur("elapsed", time.Since(start)).Msg("photo processing completed")

		return 0, false, stopQuietly(err)
	}

	delay, willRetry, err := o.fail(settleCtx, photoID, correlationID, stageErr)
	if willRetry {
		metrics.SagaDuration.WithLabelValues("retrying").Observe(time.Since(start).Seconds())
		l.Warn().Err(stageErr).Dur("retry_in", delay).Msg("photo processing failed, retry scheduled")
	} else {
		metrics.SagaDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		l.Error().Err(stageErr).Msg("photo processing failed")
	}

	return delay, willRetry, stopQuietly(err)
}

// prepare 判断照片是否需要处理；手动重试后的 PENDING 照片先走 UPLOADING -> UPLOADED.
func (o *Orchestrator) prepare(ctx context.Context, p *model.Photo) (*model.Photo, bool, error) {
	l := ctxPkg.Logger(ctx)

	switch p.Status {
	case model.StatusUploaded, model.StatusRetrying:
		return p, true, nil
	case model.StatusPending:
		if p.StorageKey == "" {
			return p, false, nil
		}

		for _, to := range []model.PhotoStatus{model.StatusUploading, model.StatusUploaded} {
			next, err := o.mutate(ctx, p, func(p *model.Photo) error {
				return transition(ctx, p, to, o.now())
			})
			if err != nil {
				return nil, false, err
			}

			p = next
		}

		return p, true, nil
	default:
		l.Debug().Uint("photo_id", p.ID).Str("status", string(p.Status)).Msg("photo not processable, skipped")

		return p, false, nil
	}
}

// derive 并行运行缩略图与元数据分支并汇合.
func (o *Orchestrator) derive(ctx context.Context, p *model.Photo) (*derived, error) {
	res := &derived{metadata: emptyMetadata}

	var metadata string

	g, gctx := o.pool.Group(ctx)
	g.Go(func() error {
		return o.thumbnail(gctx, p, res)
	})
	g.Go(func() error {
		metadata = o.metadata(ctx, p)

		return nil
	})

	err := g.Wait()
	res.metadata = metadata

	if err == nil && ctx.Err() == nil {
		return res, nil
	}

	var sf *errs.ProcessingStageFailure
	if ctx.Err() == nil && errors.As(err, &sf) {
		return nil, sf
	}

	if err == nil {
		err = ctx.Err()
	}

	return nil, &errs.ProcessingStageFailure{PhotoID: p.ID, Stage: errs.StageCompletion, Err: err}
}

func (o *Orchestrator) thumbnail(ctx context.Context, p *model.Photo, res *derived) (err error) {
	ctx, span := tracing.StartSpan(ctx, "photo.thumbnail")
	defer func() { tracing.EndSpan(span, err) }()

	fail := func(cause error) error {
		o.audit.record(context.WithoutCancel(ctx), p, model.EventThumbnailGenerated, false, "", cause.Error())

		return &errs.ProcessingStageFailure{PhotoID: p.ID, Stage: errs.StageThumbnail, Err: cause}
	}

	rc, err := o.blob.Download(ctx, p.StorageKey)
	if err != nil {
		return fail(err)
	}
	defer rc.Close()

	thumb, err := o.renderer.Render(rc)
	if err != nil {
		return fail(err)
	}

	key := model.ThumbnailKeyFor(p.StorageKey, thumb.Ext)

	url, err := o.blob.Upload(ctx, key, bytes.NewReader(thumb.Data), thumb.ContentType, int64(len(thumb.Data)))
	if err != nil {
		return fail(err)
	}

	res.thumbKey, res.thumbURL = key, url
	res.width, res.height = thumb.Width, thumb.Height

	o.audit.record(ctx, p, model.EventThumbnailGenerated, true,
		fmt.Sprintf("%dx%d -> %dx%d %s", thumb.Width, thumb.Height, thumb.ThumbWidth, thumb.ThumbHeight, key), "")

	return nil
}

// metadata 提取 EXIF；任何失败都返回 "{}".
func (o *Orchestrator) metadata(ctx context.Context, p *model.Photo) string {
	ctx, span := tracing.StartSpan(ctx, "photo.metadata")
	defer span.End()

	fail := func(cause error) string {
		o.audit.record(ctx, p, model.EventMetadataExtracted, false, "", cause.Error())

		return emptyMetadata
	}

	rc, err := o.blob.Download(ctx, p.StorageKey)
	if err != nil {
		return fail(err)
	}
	defer rc.Close()

	md, err := imaging.Extract(rc)
	if err != nil {
		return fail(err)
	}

	out, err := sonic.MarshalString(md)
	if err != nil {
		return fail(err)
	}

	o.audit.record(ctx, p, model.EventMetadataExtracted, true, fmt.Sprintf("%d sections", len(md)), "")

	return out
}

// complete 重新读取照片，写入分支产出并进入 COMPLETED.
// 照片在处理期间被删除时，清理本次写入的缩略图.
func (o *Orchestrator) complete(ctx context.Context, photoID uint, correlationID string, res *derived) error {
	p, err := o.photos.FindByID(ctx, photoID)
	if errs.IsNotFound(err) && res.thumbKey != "" {
		if _, derr := o.blob.Delete(ctx, res.thumbKey); derr != nil {
			l := ctxPkg.Logger(ctx)
			l.Warn().Err(derr).Str("key", res.thumbKey).Msg("delete orphaned thumbnail failed")
		}
	}

	if err != nil {
		return err
	}

	p, err = o.mutate(ctx, p, func(p *model.Photo) error {
		if err := transition(ctx, p, model.StatusCompleted, o.now()); err != nil {
			return err
		}

		p.ThumbnailKey = res.thumbKey
		p.ThumbnailURL = res.thumbURL
		p.Width = res.width
		p.Height = res.height
		p.Metadata = res.metadata
		p.LastError = ""

		return nil
	})
	if err != nil {
		return err
	}

	evict(ctx, o.cache, p.ID)
	o.audit.record(ctx, p, model.EventProcessingCompleted, true, fmt.Sprintf("retries %d", p.RetryCount), "")
	publish(ctx, o.publisher, queue.TopicProcessingCompleted,
		queue.NewProcessingCompleted(p.ID, p.UserID, p.ThumbnailURL, p.Width, p.Height, p.Metadata, correlationID), correlationID)

	return nil
}

// fail 重新读取照片，累加重试计数并进入 RETRYING 或 FAILED.
func (o *Orchestrator) fail(ctx context.Context, photoID uint, correlationID string, cause error) (time.Duration, bool, error) {
	p, err := o.photos.FindByID(ctx, photoID)
	if err != nil {
		return 0, false, err
	}

	var willRetry bool

	p, err = o.mutate(ctx, p, func(p *model.Photo) error {
		p.RetryCount++
		p.TotalAttempts++
		p.LastError = cause.Error()

		willRetry = p.RetryCount < o.cfg.MaxRetries &&
			(o.cfg.MaxTotalAttempts <= 0 || p.TotalAttempts < o.cfg.MaxTotalAttempts)

		to := model.StatusFailed
		if willRetry {
			to = model.StatusRetrying
		}

		return transition(ctx, p, to, o.now())
	})
	if err != nil {
		return 0, false, err
	}

	stage := errs.StageCompletion

	var sf *errs.ProcessingStageFailure
	if errors.As(cause, &sf) {
		stage = sf.Stage
	}

	evict(ctx, o.cache, p.ID)
	o.audit.record(ctx, p, model.EventProcessingFailed, false, "stage "+stage, cause.Error())
	publish(ctx, o.publisher, queue.TopicProcessingFailed,
		queue.NewProcessingFailed(p.ID, p.UserID, cause.Error(), errs.TypeName(cause), p.RetryCount, willRetry, correlationID),
		correlationID)

	if !willRetry {
		return 0, false, nil
	}

	delay := o.policy.Delay(p.RetryCount)
	o.audit.record(ctx, p, model.EventRetryScheduled, true,
		fmt.Sprintf("retry %d in %s", p.RetryCount, delay), "")

	return delay, true, nil
}

func (o *Orchestrator) mutate(ctx context.Context, p *model.Photo, apply func(*model.Photo) error) (*model.Photo, error) {
	return mutatePhoto(ctx, o.photos, p, o.cfg.MaxConflictReload, apply)
}

// stopQuietly 照片已被删除或已被其他流程推进时静默结束.
func stopQuietly(err error) error {
	var it *errs.InvalidTransition

	if err == nil || errs.IsNotFound(err) || errors.As(err, &it) {
		return nil
	}

	return err
}
