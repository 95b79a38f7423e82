// Package router 管理路由配置，把 pkg/internal/handle 中的处理器绑定到 gin 路由组.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/internal/handle"
	"github.com/yeisme/photovault/pkg/middleware"
)

// RegisterPhotoRoutes 注册照片相关路由，假定 g 为 /api/v1：
//
//	POST   /photos/upload                 -> UploadPhoto（需要调用方身份）
//	GET    /photos                        -> ListPhotos
//	GET    /photos/stats                  -> PhotoStats
//	GET    /photos/:id                    -> GetPhoto
//	DELETE /photos/:id                    -> DeletePhoto
//	GET    /photos/:id/events             -> PhotoEvents
//	GET    /photos/:id/events/paginated   -> PhotoEventsPaged
//	POST   /photos/:id/retry              -> RetryPhoto
//	GET    /photos/:id/download           -> DownloadPhoto
//	GET    /correlations/:id/events       -> CorrelationEvents
func RegisterPhotoRoutes(g *gin.RouterGroup) {
	photos := g.Group("/photos")
	{
		photos.POST("/upload", middleware.RequireUser(), handle.UploadPhoto)
		photos.GET("", handle.ListPhotos)
		photos.GET("/stats", handle.PhotoStats)
		photos.GET("/:id", handle.GetPhoto)
		photos.DELETE("/:id", handle.DeletePhoto)
		photos.GET("/:id/events", handle.PhotoEvents)
		photos.GET("/:id/events/paginated", handle.PhotoEventsPaged)
		photos.POST("/:id/retry", handle.RetryPhoto)
		photos.GET("/:id/download", handle.DownloadPhoto)
	}

	g.GET("/correlations/:id/events", handle.CorrelationEvents)
}
