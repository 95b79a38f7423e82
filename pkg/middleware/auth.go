package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/types"
)

const (
	// DefaultUserHeader 默认的身份请求头.
	DefaultUserHeader = "X-User"
	// AnonymousUser 关闭身份校验时的缺省用户.
	AnonymousUser = "anonymous"

	userKey = "user"
)

// UserMiddleware 解析调用方身份并写入 gin.Context 与 request context.
// 依次读取 auth.user_header、oauth2-proxy 注入的邮箱头；非 release 模式且开启 dev_allow_query 时
// 允许 ?user= 兜底. 关闭校验时缺失身份记为 anonymous. 本中间件从不拒绝请求，由 RequireUser 决定.
func UserMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	header := strings.TrimSpace(conf.UserHeader)
	if header == "" {
		header = DefaultUserHeader
	}

	return func(c *gin.Context) {
		if isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		user := resolveUser(c, header, conf.DevAllowQuery)
		if user == "" && !conf.Enabled {
			user = AnonymousUser
		}

		if user != "" {
			c.Set(userKey, user)
			c.Request = c.Request.WithContext(ctxPkg.WithUser(c.Request.Context(), user))
		}

		c.Next()
	}
}

// RequireUser 要求请求已识别出调用方，否则返回 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUser(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{
				Error:   "unauthorized",
				Message: "missing caller identity",
			})

			return
		}

		c.Next()
	}
}

// GetUser 返回当前请求的调用方，未识别时为空.
func GetUser(c *gin.Context) string {
	if v := c.GetString(userKey); v != "" {
		return v
	}

	return ctxPkg.User(c.Request.Context())
}

func resolveUser(c *gin.Context, header string, allowQuery bool) string {
	for _, h := range []string{header, "X-Auth-Request-Email", "X-Forwarded-Email"} {
		if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
			return v
		}
	}

	if allowQuery && gin.Mode() != gin.ReleaseMode {
		return strings.TrimSpace(c.Query("user"))
	}

	return ""
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
