// Package middleware 提供 gin 中间件：身份识别、关联 ID、访问日志、指标、追踪、限流、熔断与依赖注入.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
)

// HeaderCorrelationID 请求与响应中携带关联 ID 的头.
const HeaderCorrelationID = "X-Correlation-ID"

const maxCorrelationIDLen = 128

// CorrelationMiddleware 读取调用方传入的关联 ID，缺失或非法时生成新的，
// 写入 request context 并在响应头中回显.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderCorrelationID))
		if id == "" || len(id) > maxCorrelationIDLen {
			id = ctxPkg.NewCorrelationID()
		}

		c.Request = c.Request.WithContext(ctxPkg.WithCorrelationID(c.Request.Context(), id))
		c.Header(HeaderCorrelationID, id)
		c.Next()
	}
}
