// Package service 实现照片上传、处理编排、查询、删除与手动重试.
//
// 上传流程 UploadService 在请求内完成校验、去重与原图写入，随后把处理交给 Orchestrator；
// Orchestrator 在工作池上运行缩略图与元数据两个分支，汇合后推进状态并发布事件，失败时按指数退避重试.
// 所有照片写入都经过仓储的乐观锁，冲突时重新读取并重新判断迁移是否仍然合法.
package service

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/internal/worker"
	"github.com/yeisme/photovault/pkg/metrics"
	"github.com/yeisme/photovault/pkg/queue"
)

// SourceService 审计事件中的来源服务名.
const SourceService = configs.AppName

// Deps 服务依赖.Cache、Queue 与 Resilience 可为 nil.
type Deps struct {
	Photos     repository.PhotoRepository
	Events     repository.EventRepository
	Queue      repository.QueueRepository
	Blob       blob.Storage
	Publisher  events.Publisher
	Pool       *worker.Pool
	Cache      *cache.Cache
	Resilience *resilience.Registry
	Photo      configs.PhotoConfig
	PresignTTL time.Duration
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(crand.Reader, 0)
)

// newToken 生成存储键中的随机段.
func newToken(t time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), ulidEntropy).String()
}

// buildStorageKey 生成原图键：{prefix}/{userID}/{photoID}/{ulid}{ext}.
func buildStorageKey(prefix, userID string, photoID uint, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d/%s%s", prefix, userID, photoID, newToken(now), ext)
}

// auditor 追加审计事件，写入失败只记录日志.
type auditor struct {
	events repository.EventRepository
	cache  *cache.Cache
}

func (a *auditor) record(ctx context.Context, p *model.Photo, typ model.EventType, success bool, details, errMsg string) {
	e := &model.PhotoEvent{
		PhotoID:       p.ID,
		EventType:     typ,
		Success:       success,
		Details:       details,
		ErrorMessage:  errMsg,
		CorrelationID: ctxPkg.CorrelationID(ctx),
		UserID:        p.UserID,
		SourceService: SourceService,
	}

	if err := a.events.Append(ctx, e); err != nil {
		l := ctxPkg.Logger(ctx)
		l.Error().Err(err).Uint("photo_id", p.ID).Str("event", string(typ)).Msg("append photo event failed")

		return
	}

	if a.cache != nil {
		_ = a.cache.Delete(ctx, cache.PhotoEventsKey(p.ID))
	}
}

// transition 迁移状态并记录指标；非法迁移以 error 级别记录.
func transition(ctx context.Context, p *model.Photo, to model.PhotoStatus, now time.Time) error {
	from := p.Status

	if err := p.TransitionTo(to, now); err != nil {
		l := ctxPkg.Logger(ctx)
		l.Error().Err(err).Uint("photo_id", p.ID).Msg("illegal photo status transition")

		return err
	}

	metrics.PhotoTransitions.WithLabelValues(string(from), string(to)).Inc()

	return nil
}

// evict 删除照片缓存，失败只记录日志.
func evict(ctx context.Context, c *cache.Cache, id uint) {
	if c == nil {
		return
	}

	if err := c.EvictPhoto(ctx, id); err != nil {
		l := ctxPkg.Logger(ctx)
		l.Warn().Err(err).Uint("photo_id", id).Msg("evict photo cache failed")
	}
}

// publish 发布事件，失败只记录日志.
func publish(ctx context.Context, pub events.Publisher, topic string, evt queue.Event, correlationID string) {
	if pub == nil {
		return
	}

	if err := pub.PublishWithCorrelation(ctx, topic, evt, correlationID); err != nil {
		l := ctxPkg.Logger(ctx)
		l.Warn().Err(err).Str("topic", topic).Uint("photo_id", evt.PhotoRef()).Msg("publish event failed")
	}
}

// mutatePhoto 对 p 的副本应用 apply 并以乐观锁写回.
// 版本冲突时重新读取最新记录再次应用，最多 maxReload 次；apply 返回的错误（如非法迁移）直接返回.
func mutatePhoto(ctx context.Context, repo repository.PhotoRepository, p *model.Photo, maxReload int,
	apply func(*model.Photo) error,
) (*model.Photo, error) {
	if maxReload <= 0 {
		maxReload = configs.DefaultMaxConflictReloads
	}

	cur := p

	for reloads := 0; ; reloads++ {
		next := *cur
		if err := apply(&next); err != nil {
			return nil, err
		}

		err := repo.Update(ctx, &next)
		if err == nil {
			return &next, nil
		}

		if !errors.Is(err, errs.ErrVersionConflict) || reloads >= maxReload {
			return nil, err
		}

		l := ctxPkg.Logger(ctx)
		l.Debug().Uint("photo_id", p.ID).Int("reload", reloads+1).Msg("version conflict, reloading photo")

		fresh, err := repo.FindByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		cur = fresh
	}
}
