package handle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/internal/types"
	"github.com/yeisme/photovault/pkg/middleware"
)

// multipartOverhead 表单边界与其它字段预留的字节数.
const multipartOverhead = 1 << 20

// UploadPhoto 上传一张照片.
//
//	@Summary		上传照片
//	@Description	multipart 字段 file 为图片本体；校验、去重并写入原图后异步生成缩略图与提取元数据
//	@Tags			照片
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			X-User		header		string					true	"调用方身份"
//	@Param			file		formData	file					true	"图片文件"
//	@Param			description	formData	string					false	"描述"
//	@Param			tags		formData	string					false	"逗号分隔的标签"
//	@Success		202			{object}	types.AcceptedResponse	"已受理"
//	@Failure		400			{object}	types.ErrorResponse		"请求参数错误"
//	@Failure		401			{object}	types.ErrorResponse		"缺少身份"
//	@Failure		409			{object}	types.ErrorResponse		"重复内容"
//	@Failure		413			{object}	types.ErrorResponse		"文件过大"
//	@Failure		503			{object}	types.ErrorResponse		"对象存储不可用"
//	@Router			/api/v1/photos/upload [post]
func UploadPhoto(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	if limit := s.Upload.MaxBytes(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, &errs.PayloadTooLarge{Limit: s.Upload.MaxBytes(), Size: c.Request.ContentLength})
			return
		}

		writeError(c, &errs.ValidationError{Field: "file", Message: err.Error()})

		return
	}

	var form types.UploadPhotoForm
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, &errs.ValidationError{Field: "form", Message: err.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, &errs.ValidationError{Field: "file", Message: err.Error()})
		return
	}
	defer f.Close()

	ctx := c.Request.Context()

	p, err := s.Upload.Upload(ctx, &service.UploadRequest{
		UserID:      middleware.GetUser(c),
		Body:        f,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Filename:    fh.Filename,
		Description: form.Description,
		Tags:        splitTags(form.Tags),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := types.NewPhotoResponse(p)

	if p.Status == model.StatusFailed {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "upload failed",
			Message: p.LastError,
			Details: map[string]any{"photoId": p.ID, "provider": p.StorageProvider},
		})

		return
	}

	c.Header("Location", "/api/v1/photos/"+strconv.FormatUint(uint64(p.ID), 10))
	c.JSON(http.StatusAccepted, types.AcceptedResponse{
		Status:        "accepted",
		CorrelationID: ctxPkg.CorrelationID(ctx),
		Photo:         &resp,
	})
}

// GetPhoto 查询照片详情.
//
//	@Summary	照片详情
//	@Tags		照片
//	@Produce	json
//	@Param		id	path		int						true	"照片 ID"
//	@Success	200	{object}	types.PhotoResponse		"照片"
//	@Failure	404	{object}	types.ErrorResponse		"不存在"
//	@Router		/api/v1/photos/{id} [get]
func GetPhoto(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	id, ok := photoID(c)
	if !ok {
		return
	}

	p, err := s.Photos.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewPhotoResponse(p))
}

// ListPhotos 按用户和/或状态分页列出照片.
//
//	@Summary	照片列表
//	@Tags		照片
//	@Produce	json
//	@Param		userId	query		string						false	"用户"
//	@Param		status	query		string						false	"状态"
//	@Param		page	query		int							false	"页码，从 0 开始"
//	@Param		size	query		int							false	"每页数量"
//	@Success	200		{object}	types.ListPhotosResponse	"照片列表"
//	@Failure	400		{object}	types.ErrorResponse			"缺少 userId 与 status"
//	@Router		/api/v1/photos [get]
func ListPhotos(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	var q types.ListPhotosQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, &errs.ValidationError{Field: "query", Message: err.Error()})
		return
	}

	list, total, page, err := s.Photos.List(c.Request.Context(), service.ListQuery{
		UserID: strings.TrimSpace(q.UserID),
		Status: strings.ToUpper(strings.TrimSpace(q.Status)),
		Page:   repository.Page{Number: q.Page, Size: q.Size},
	})
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]types.PhotoResponse, 0, len(list))
	for i := range list {
		items = append(items, types.NewPhotoResponse(&list[i]))
	}

	c.JSON(http.StatusOK, types.ListPhotosResponse{Items: items, Total: total, Page: page.Number, Size: page.Size})
}

// DeletePhoto 删除照片及其对象.
//
//	@Summary	删除照片
//	@Tags		照片
//	@Param		id	path	int	true	"照片 ID"
//	@Success	204	"已删除"
//	@Failure	404	{object}	types.ErrorResponse	"不存在"
//	@Router		/api/v1/photos/{id} [delete]
func DeletePhoto(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	id, ok := photoID(c)
	if !ok {
		return
	}

	if err := s.Photos.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// PhotoEvents 返回照片的全部审计事件.
//
//	@Summary	照片事件
//	@Tags		照片
//	@Produce	json
//	@Param		id	path		int							true	"照片 ID"
//	@Success	200	{array}		types.PhotoEventResponse	"事件，时间升序"
//	@Failure	404	{object}	types.ErrorResponse			"不存在"
//	@Router		/api/v1/photos/{id}/events [get]
func PhotoEvents(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	id, ok := photoID(c)
	if !ok {
		return
	}

	list, err := s.Photos.Events(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewPhotoEventResponses(list))
}

// PhotoEventsPaged 分页返回照片事件.
//
//	@Summary	照片事件分页
//	@Tags		照片
//	@Produce	json
//	@Param		id		path		int						true	"照片 ID"
//	@Param		page	query		int						false	"页码，从 0 开始"
//	@Param		size	query		int						false	"每页数量"
//	@Success	200		{object}	types.EventPageResponse	"事件，时间降序"
//	@Failure	404		{object}	types.ErrorResponse		"不存在"
//	@Router		/api/v1/photos/{id}/events/paginated [get]
func PhotoEventsPaged(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	id, ok := photoID(c)
	if !ok {
		return
	}

	var q types.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, &errs.ValidationError{Field: "query", Message: err.Error()})
		return
	}

	list, total, page, err := s.Photos.EventsPaged(c.Request.Context(), id, repository.Page{Number: q.Page, Size: q.Size})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.EventPageResponse{
		Items: types.NewPhotoEventResponses(list),
		Total: total,
		Page:  page.Number,
		Size:  page.Size,
	})
}

// RetryPhoto 手动重试处理失败的照片.
//
//	@Summary	手动重试
//	@Tags		照片
//	@Produce	json
//	@Param		id	path		int						true	"照片 ID"
//	@Success	202	{object}	types.AcceptedResponse	"已受理"
//	@Failure	404	{object}	types.ErrorResponse		"不存在"
//	@Failure	409	{object}	types.ErrorResponse		"当前状态不允许重试"
//	@Router		/api/v1/photos/{id}/retry [post]
func RetryPhoto(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	id, ok := photoID(c)
	if !ok {
		return
	}

	p, cid, err := s.Photos.Retry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := types.NewPhotoResponse(p)
	c.JSON(http.StatusAccepted, types.AcceptedResponse{Status: "accepted", CorrelationID: cid, Photo: &resp})
}

// DownloadPhoto 重定向到原图或缩略图的限时访问地址.
//
//	@Summary	下载照片
//	@Tags		照片
//	@Param		id		path	int		true	"照片 ID"
//	@Param		variant	query	string	false	"original 或 thumbnail"
//	@Success	302		"重定向到预签名地址"
//	@Failure	400		{object}	types.ErrorResponse	"variant 非法"
//	@Failure	404		{object}	types.ErrorResponse	"不存在"
//	@Router		/api/v1/photos/{id}/download [get]
func DownloadPhoto(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	id, ok := photoID(c)
	if !ok {
		return
	}

	url, err := s.Photos.DownloadURL(c.Request.Context(), id, c.DefaultQuery("variant", service.VariantOriginal))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

// PhotoStats 返回处理概况.
//
//	@Summary	处理概况
//	@Tags		照片
//	@Produce	json
//	@Success	200	{object}	types.StatsResponse	"按状态计数"
//	@Router		/api/v1/photos/stats [get]
func PhotoStats(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	stats, err := s.Photos.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CorrelationEvents 返回同一关联 ID 下的全部事件.
//
//	@Summary	关联事件
//	@Tags		照片
//	@Produce	json
//	@Param		id	path	string						true	"关联 ID"
//	@Success	200	{array}	types.PhotoEventResponse	"事件"
//	@Router		/api/v1/correlations/{id}/events [get]
func CorrelationEvents(c *gin.Context) {
	s := services(c)
	if s == nil {
		return
	}

	list, err := s.Photos.CorrelationEvents(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewPhotoEventResponses(list))
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
