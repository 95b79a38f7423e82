// Package app 提供应用程序的初始化、HTTP 服务与优雅关闭.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/photovault/pkg/api"
	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/jobs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/internal/storage"
	"github.com/yeisme/photovault/pkg/internal/worker"
	"github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/metrics"
	"github.com/yeisme/photovault/pkg/middleware"
	"github.com/yeisme/photovault/pkg/scheduler"
	"github.com/yeisme/photovault/pkg/tracing"
)

const defaultShutdownTimeout = 30 * time.Second

// App 持有 HTTP 引擎与全部进程级组件.
type App struct {
	Engine *gin.Engine

	config    *configs.AppConfig
	manager   *storage.Manager
	pool      *worker.Pool
	orch      *service.Orchestrator
	publisher events.Publisher
	sched     *scheduler.Scheduler
	server    *http.Server
}

// NewApp 按已加载的配置装配存储、事件通道、工作池、业务服务、定时任务与 HTTP 路由.
// 调用前须先执行 configs.InitConfig 与 log.Init.
func NewApp(ctx context.Context) (*App, error) {
	config := configs.GetConfig()

	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a := &App{config: config, manager: manager}

	if err := a.wire(ctx); err != nil {
		_ = manager.Close()

		return nil, err
	}

	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.config
	db := a.manager.GetDBClient().DB

	photos := repository.NewPhotoRepository(db)
	eventRepo := repository.NewEventRepository(db)
	queueRepo := repository.NewQueueRepository(db)

	publisher, err := events.New(ctx, &cfg.Events, events.Deps{
		MQ:         a.manager.GetMQClient(),
		Queue:      queueRepo,
		Resilience: a.manager.GetResilience(),
	})
	if err != nil {
		return fmt.Errorf("init events: %w", err)
	}

	a.publisher = publisher
	a.pool = worker.New(worker.OptionsFrom(cfg.Worker))

	var appCache *cache.Cache
	if kv := a.manager.GetKVClient(); kv != nil {
		appCache = cache.NewCache(kv)
	}

	deps := service.Deps{
		Photos:     photos,
		Events:     eventRepo,
		Queue:      queueRepo,
		Blob:       a.manager.GetBlob(),
		Publisher:  publisher,
		Pool:       a.pool,
		Cache:      appCache,
		Resilience: a.manager.GetResilience(),
		Photo:      cfg.Photo,
		PresignTTL: cfg.Storage.PresignTTL,
	}

	a.orch = service.NewOrchestrator(deps)
	uploads := service.NewUploadService(deps, a.orch)
	photoSvc := service.NewPhotoService(deps, a.orch)

	replayer := events.NewReplayer(queueRepo, events.PrimaryOf(publisher), cfg.Events.Poller)
	replayer.Handle(model.CommandProcessPhoto, a.orch.Resume)
	replayer.Handle(model.CommandDeletePhoto, photoSvc.PurgeObjects)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	a.sched = sched

	err = jobs.RegisterCronJobs(ctx, sched, jobs.Runner{
		Replayer: replayer,
		Photos:   photoSvc,
		Events:   cfg.Events,
		Photo:    cfg.Photo,
	})
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}

	a.Engine = a.newEngine(&middleware.Services{Upload: uploads, Photos: photoSvc, Publisher: publisher})

	return nil
}

func (a *App) newEngine(svcs *middleware.Services) *gin.Engine {
	cfg := a.config

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	engine.MaxMultipartMemory = cfg.Server.MaxMultipartMemory

	engine.Use(
		gin.Recovery(),
		middleware.CorrelationMiddleware(),
		middleware.TracingMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.CORSMiddleware(cfg.Server, cfg.Auth),
	)

	if cfg.Server.Gzip {
		engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/debug/pprof"})))
	}

	engine.Use(
		middleware.UserMiddleware(cfg.Auth),
		middleware.RoleMiddleware(),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(a.manager.GetResilience()),
		middleware.StorageMiddleware(a.manager),
		middleware.SchedulerMiddleware(a.sched),
		middleware.ServicesMiddleware(svcs),
	)

	if err := metrics.StartMetricsServer(cfg.Metrics, engine); err != nil {
		l.Warn().Err(err).Msg("metrics endpoint disabled")
	}

	return api.RegisterGroup(engine, cfg.Server)
}

// Run 启动定时任务与 HTTP 服务，ctx 结束后优雅关闭.
func (a *App) Run(ctx context.Context) error {
	l := log.Logger()

	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	a.sched.Start()

	errCh := make(chan error, 1)

	go func() {
		l.Info().Str("addr", a.server.Addr).Msg("http server listening")

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var serveErr error

	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	timeout := a.config.Worker.ShutdownTimeout()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return errors.Join(serveErr, a.Shutdown(shutdownCtx))
}

// Shutdown 依次停止接收请求、定时任务与重试定时器，等待工作池排空后关闭发布通道与存储连接.
func (a *App) Shutdown(ctx context.Context) error {
	l := log.Logger()

	var errList []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errList = append(errList, fmt.Errorf("shutdown http: %w", err))
		}
	}

	if a.sched != nil {
		if err := a.sched.Shutdown(); err != nil {
			errList = append(errList, fmt.Errorf("shutdown scheduler: %w", err))
		}
	}

	if a.orch != nil {
		a.orch.Close()
	}

	if a.pool != nil {
		if err := a.pool.Shutdown(ctx); err != nil {
			errList = append(errList, fmt.Errorf("shutdown worker pool: %w", err))
		}
	}

	if c, ok := events.PrimaryOf(a.publisher).(io.Closer); ok {
		if err := c.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close publisher: %w", err))
		}
	}

	if err := tracing.ShutdownTracer(ctx); err != nil {
		errList = append(errList, fmt.Errorf("shutdown tracer: %w", err))
	}

	if err := a.manager.Close(); err != nil {
		errList = append(errList, fmt.Errorf("close storage: %w", err))
	}

	err := errors.Join(errList...)
	if err != nil {
		l.Error().Err(err).Msg("shutdown finished with errors")
	} else {
		l.Info().Msg("shutdown complete")
	}

	return err
}
