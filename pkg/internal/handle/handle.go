// Package handle 提供 HTTP 请求处理器，业务服务由 middleware.ServicesMiddleware 注入.
package handle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/types"
	"github.com/yeisme/photovault/pkg/middleware"
)

// DefaultHandler 未实现的路由.
func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, types.ErrorResponse{Error: "not implemented"})
}

// services 取出注入的业务服务，缺失时写入 503 并返回 nil.
func services(c *gin.Context) *middleware.Services {
	s := middleware.GetServices(c)
	if s == nil || s.Photos == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "service unavailable",
			Message: "photo services not initialized",
		})

		return nil
	}

	return s
}

// photoID 解析路径参数 id，非法时写入 400.
func photoID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, &errs.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}

	return uint(id), true
}

// writeError 把领域错误映射为 HTTP 状态码与统一错误响应.
func writeError(c *gin.Context, err error) {
	var (
		notFound   *errs.NotFound
		invalid    *errs.ValidationError
		tooLarge   *errs.PayloadTooLarge
		duplicate  *errs.DuplicateContent
		transition *errs.InvalidTransition
		conflict   *errs.Conflict
		storage    *errs.StorageFailure
		open       *errs.CircuitOpen
		stage      *errs.ProcessingStageFailure
		publish    *errs.EventPublishFailure
	)

	l := ctxPkg.Logger(c.Request.Context())

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not found", Message: err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation failed",
			Message: err.Error(),
			Details: map[string]any{"field": invalid.Field},
		})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, types.ErrorResponse{
			Error:   "payload too large",
			Message: err.Error(),
			Details: map[string]any{"limit": tooLarge.Limit, "size": tooLarge.Size},
		})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "duplicate content",
			Message: err.Error(),
			Details: map[string]any{"existingId": duplicate.ExistingID},
		})
	case errors.As(err, &transition):
		l.Error().Err(err).Msg("invalid status transition")
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "invalid transition",
			Message: err.Error(),
			Details: map[string]any{"from": transition.From, "to": transition.To},
		})
	case errors.As(err, &conflict), errors.Is(err, errs.ErrVersionConflict):
		c.JSON(http.StatusConflict, types.ErrorResponse{Error: "conflict", Message: err.Error()})
	case errors.As(err, &storage):
		l.Error().Err(err).Msg("storage failure")
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "storage unavailable",
			Message: err.Error(),
			Details: map[string]any{"provider": storage.Provider, "operation": storage.Operation},
		})
	case errors.As(err, &open):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "circuit open",
			Message: err.Error(),
			Details: map[string]any{"provider": open.Name, "operation": open.Operation},
		})
	case errors.As(err, &stage):
		l.Error().Err(err).Msg("processing stage failure")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "processing failed",
			Message: err.Error(),
			Details: map[string]any{"photoId": stage.PhotoID, "stage": stage.Stage},
		})
	case errors.As(err, &publish):
		l.Warn().Err(err).Msg("event publish failed, queued for replay")
		c.JSON(http.StatusAccepted, types.AcceptedResponse{
			Status:        "queued",
			CorrelationID: ctxPkg.CorrelationID(c.Request.Context()),
		})
	default:
		l.Error().Err(err).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal error", Message: err.Error()})
	}
}
