// Package jobs 负责注册与实现业务定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/scheduler"
)

// Runner 定时任务依赖，Replayer 或 Photos 为 nil 时跳过对应任务.
type Runner struct {
	Replayer *events.Replayer
	Photos   *service.PhotoService
	Events   configs.EventsConfig
	Photo    configs.PhotoConfig
}

// RegisterCronJobs 配置业务定时任务：
//   - queue-replay 按 events.poller.cron 重放回退队列
//   - queue-cleanup 每天清理过期的已完成队列项
//   - photo-sweep 按 photo.sweep_cron 重新提交卡住的照片
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, r Runner) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if r.Replayer != nil && r.Events.Poller.Enabled {
		if err := sched.AddCron(ctx, JobQueueReplay, r.Events.Poller.Cron, r.replay); err != nil {
			return err
		}

		if err := sched.AddCron(ctx, JobQueueCleanup, CronQueueCleanup, r.cleanup); err != nil {
			return err
		}
	}

	if r.Photos != nil {
		expr := r.Photo.SweepCron
		if expr == "" {
			expr = configs.DefaultPhotoSweepCron
		}

		if err := sched.AddCron(ctx, JobPhotoSweep, expr, r.sweep); err != nil {
			return err
		}
	}

	return nil
}

func (r Runner) replay(ctx context.Context) error {
	l := ctxPkg.Logger(ctx).With().Str("job", JobQueueReplay).Logger()

	res, err := r.Replayer.RunOnce(ctx)
	if err != nil {
		return err
	}

	if res.Processed > 0 {
		l.Info().Int("processed", res.Processed).Int("completed", res.Completed).
			Int("retried", res.Retried).Int("dead_letter", res.DeadLettered).Msg("queue replayed")
	}

	return nil
}

func (r Runner) cleanup(ctx context.Context) error {
	l := ctxPkg.Logger(ctx).With().Str("job", JobQueueCleanup).Logger()

	retention := time.Duration(r.Events.Poller.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = configs.DefaultQueueRetention * time.Hour
	}

	n, err := r.Replayer.Cleanup(ctx, retention)
	if err != nil {
		return err
	}

	if n > 0 {
		l.Info().Int64("deleted", n).Dur("retention", retention).Msg("completed queue items removed")
	}

	return nil
}

func (r Runner) sweep(ctx context.Context) error {
	l := ctxPkg.Logger(ctx).With().Str("job", JobPhotoSweep).Logger()

	n, err := r.Photos.Sweep(ctx)
	if err != nil {
		return err
	}

	if n > 0 {
		l.Warn().Int("resubmitted", n).Msg("stuck photos resubmitted")
	}

	return nil
}
