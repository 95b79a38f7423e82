// Package api 把 HTTP 路由组注册到 gin 引擎.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/router"
	"github.com/yeisme/photovault/pkg/middleware"
)

// BasePath 业务接口前缀.
const BasePath = "/api/v1"

// RegisterGroup 注册健康检查、swagger 与 /api/v1 下的照片和调度器路由.
func RegisterGroup(e *gin.Engine, cfg configs.ServerConfig) *gin.Engine {
	router.RegisterHealthCheckRoute(e)
	router.RegisterSwaggerRoute(e, cfg)

	v1 := e.Group(BasePath, middleware.ETagMiddleware(middleware.DefaultETagMaxBody))
	router.RegisterPhotoRoutes(v1)
	router.RegisterSchedulerRoutes(v1)

	return e
}
