package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/configs"
)

// CORSMiddleware CORS中间件，放行身份与关联 ID 请求头并暴露关联 ID.
func CORSMiddleware(cfg configs.ServerConfig, auth configs.AuthConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}

	userHeader := auth.UserHeader
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}

	config.AddAllowHeaders(userHeader, HeaderRole, HeaderCorrelationID, "If-None-Match")
	config.AddExposeHeaders(HeaderCorrelationID, "ETag", "Location")

	if cfg.Debug {
		config.AllowAllOrigins = true
		config.AllowOrigins = nil
	}

	return cors.New(config)
}
