package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/internal/handle"
	"github.com/yeisme/photovault/pkg/middleware"
)

// RegisterSchedulerRoutes 注册调度器相关路由，查看与立即执行需要 operator，停止与删除需要 admin.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	jobs := g.Group("/scheduler/jobs", middleware.RequireMinRole(middleware.RoleOperator))
	{
		jobs.GET("", handle.SchedulerJobs)
		jobs.GET("/:name", handle.SchedulerJob)
		jobs.POST("/:name/run", handle.SchedulerRunJob)
		jobs.POST("/stop", middleware.RequireMinRole(middleware.RoleAdmin), handle.SchedulerStopJobs)
		jobs.DELETE("/:name", middleware.RequireMinRole(middleware.RoleAdmin), handle.SchedulerRemoveJob)
	}
}
