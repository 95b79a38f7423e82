package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/scheduler"
)

type (
	schedulerKey struct{}
	servicesKey  struct{}
)

// Services 请求处理所需的业务服务，进程内单例.
type Services struct {
	Upload    *service.UploadService
	Photos    *service.PhotoService
	Publisher events.Publisher
}

// SchedulerMiddleware 将scheduler注入到context中.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), schedulerKey{}, sched)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetScheduler 从context中获取scheduler.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if sched, ok := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler); ok {
		return sched
	}

	return nil
}

// ServicesMiddleware 将业务服务注入到 request context.
func ServicesMiddleware(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), servicesKey{}, s)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetServices 从 context 中获取业务服务，未注入时返回 nil.
func GetServices(c *gin.Context) *Services {
	if s, ok := c.Request.Context().Value(servicesKey{}).(*Services); ok {
		return s
	}

	return nil
}
