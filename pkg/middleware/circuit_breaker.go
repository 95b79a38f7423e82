package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/internal/types"
)

// BreakerHTTP HTTP 入口使用的熔断器名称，可在 resilience.backends.http 单独配置.
const BreakerHTTP = "http"

var errServerError = errors.New("server error response")

// CircuitBreakerMiddleware 以 5xx 响应作为失败计入 http 熔断器，打开时直接返回 503.
func CircuitBreakerMiddleware(reg *resilience.Registry) gin.HandlerFunc {
	if reg == nil {
		return func(c *gin.Context) { c.Next() }
	}

	cb := reg.Breaker(BreakerHTTP)

	return func(c *gin.Context) {
		err := cb.Execute(c.FullPath(), func() error {
			c.Next()

			if c.Writer.Status() >= http.StatusInternalServerError {
				return errServerError
			}

			return nil
		})

		if errs.IsCircuitOpen(err) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Error:   "service temporarily unavailable",
				Message: err.Error(),
			})
		}
	}
}
