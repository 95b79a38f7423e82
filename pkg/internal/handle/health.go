package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/middleware"
)

const timeout = 2 * time.Second

// HealthResponse 组件健康状态.
type HealthResponse struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Provider  string `json:"provider,omitempty"`
	Error     string `json:"error,omitempty"`
}

func healthy(c *gin.Context, component, provider string) {
	c.JSON(http.StatusOK, HealthResponse{Component: component, Status: "ok", Provider: provider})
}

func unhealthy(c *gin.Context, component, provider, msg string) {
	c.JSON(http.StatusServiceUnavailable, HealthResponse{
		Component: component,
		Status:    "unhealthy",
		Provider:  provider,
		Error:     msg,
	})
}

// Health 进程存活检查.
//
//	@Summary	存活检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func Health(c *gin.Context) {
	healthy(c, "app", "")
}

// HealthDB 数据库健康检查.
//
//	@Summary	数据库健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health/db [get]
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		unhealthy(c, "db", "", "db client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := dbc.Ping(ctx); err != nil {
		unhealthy(c, "db", "", err.Error())
		return
	}

	healthy(c, "db", "")
}

// HealthStorage 对象存储健康检查，后端未实现 Ping 时只校验已初始化.
//
//	@Summary	对象存储健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health/storage [get]
func HealthStorage(c *gin.Context) {
	store := ctxPkg.GetBlobStorage(c.Request.Context())
	if store == nil {
		unhealthy(c, "storage", "", "blob storage not initialized")
		return
	}

	if p, ok := store.(blob.Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			unhealthy(c, "storage", store.Provider(), err.Error())
			return
		}
	}

	healthy(c, "storage", store.Provider())
}

// HealthMQ 消息队列健康检查.
//
//	@Summary	消息队列健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health/mq [get]
func HealthMQ(c *gin.Context) {
	mqc := ctxPkg.GetMQClient(c.Request.Context())
	if !mqc.Available() {
		unhealthy(c, "mq", "", "mq client not initialized")
		return
	}

	healthy(c, "mq", string(mqc.Type()))
}

// HealthEvents 事件发布通道健康检查；主通道不可用但可回退到数据库队列时仍视为健康.
//
//	@Summary	事件通道健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health/events [get]
func HealthEvents(c *gin.Context) {
	s := middleware.GetServices(c)
	if s == nil || s.Publisher == nil {
		unhealthy(c, "events", "", "publisher not initialized")
		return
	}

	if !s.Publisher.IsAvailable(c.Request.Context()) {
		unhealthy(c, "events", s.Publisher.ProviderType(), "publisher unavailable")
		return
	}

	healthy(c, "events", s.Publisher.ProviderType())
}
