package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
)

// DefaultETagMaxBody 超过该大小的响应不计算 ETag，直接透传.
const DefaultETagMaxBody = 1 << 20

// ETagMiddleware 为 GET/HEAD 的 200 响应计算基于 xxhash 的弱 ETag，
// 请求携带匹配的 If-None-Match 时返回 304. 照片与事件的读缓存由 service 层负责，
// 这里只减少客户端轮询处理状态时的传输量.
func ETagMiddleware(maxBody int) gin.HandlerFunc {
	if maxBody <= 0 {
		maxBody = DefaultETagMaxBody
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}

		bw := &bufferedWriter{ResponseWriter: c.Writer, max: maxBody}
		c.Writer = bw

		c.Next()

		c.Writer = bw.ResponseWriter

		if bw.passthrough {
			return
		}

		body := bw.buf.Bytes()

		if c.Writer.Status() == http.StatusOK {
			etag := fmt.Sprintf(`W/"%x"`, xxhash.Sum64(body))
			c.Writer.Header().Set("ETag", etag)

			if matchETag(c.GetHeader("If-None-Match"), etag) {
				c.Writer.WriteHeader(http.StatusNotModified)
				c.Writer.WriteHeaderNow()

				return
			}
		}

		if len(body) == 0 {
			c.Writer.WriteHeaderNow()
			return
		}

		_, _ = c.Writer.Write(body)
	}
}

func matchETag(header, etag string) bool {
	if header == "" {
		return false
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag || "W/"+candidate == etag {
			return true
		}
	}

	return false
}

// bufferedWriter 缓冲响应体；超过 max 后把已缓冲内容写出并切换为透传.
type bufferedWriter struct {
	gin.ResponseWriter

	buf         bytes.Buffer
	max         int
	passthrough bool
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}

	if w.buf.Len()+len(b) > w.max {
		w.passthrough = true

		if w.buf.Len() > 0 {
			if _, err := w.ResponseWriter.Write(w.buf.Bytes()); err != nil {
				return 0, err
			}

			w.buf.Reset()
		}

		return w.ResponseWriter.Write(b)
	}

	return w.buf.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Written 缓冲期间视为已写出，避免后续处理重复写头.
func (w *bufferedWriter) Written() bool {
	return w.passthrough || w.buf.Len() > 0 || w.ResponseWriter.Written()
}
