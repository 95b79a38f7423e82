package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationMiddleware(t *testing.T) {
	e := gin.New()
	e.Use(middleware.CorrelationMiddleware())
	e.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, ctxPkg.CorrelationID(c.Request.Context()))
	})

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"echo caller id", "cid-42", true},
		{"generate when missing", "", false},
		{"replace oversized", strings.Repeat("x", 200), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set(middleware.HeaderCorrelationID, tc.header)
			}

			w := httptest.NewRecorder()
			e.ServeHTTP(w, req)

			got := w.Header().Get(middleware.HeaderCorrelationID)
			if got == "" {
				t.Fatal("response carries no correlation id")
			}

			if got != w.Body.String() {
				t.Errorf("header %q differs from context value %q", got, w.Body.String())
			}

			if tc.keep && got != tc.header {
				t.Errorf("correlation = %q, want %q", got, tc.header)
			}

			if !tc.keep && got == tc.header {
				t.Errorf("correlation %q should have been regenerated", got)
			}
		})
	}
}

func TestUserMiddleware(t *testing.T) {
	echo := func(conf configs.AuthConfig) *gin.Engine {
		e := gin.New()
		e.Use(middleware.UserMiddleware(conf))
		e.GET("/*path", func(c *gin.Context) {
			c.String(http.StatusOK, middleware.GetUser(c))
		})

		return e
	}

	tests := []struct {
		name    string
		conf    configs.AuthConfig
		path    string
		headers map[string]string
		want    string
	}{
		{
			name:    "configured header",
			conf:    configs.AuthConfig{Enabled: true, UserHeader: "X-Caller"},
			path:    "/photos",
			headers: map[string]string{"X-Caller": "alice"},
			want:    "alice",
		},
		{
			name:    "oauth2 proxy email",
			conf:    configs.AuthConfig{Enabled: true},
			path:    "/photos",
			headers: map[string]string{"X-Auth-Request-Email": "bob@example.com"},
			want:    "bob@example.com",
		},
		{
			name: "query fallback outside release",
			conf: configs.AuthConfig{Enabled: true, DevAllowQuery: true},
			path: "/photos?user=carol",
			want: "carol",
		},
		{
			name: "query ignored when not allowed",
			conf: configs.AuthConfig{Enabled: true},
			path: "/photos?user=carol",
			want: "",
		},
		{
			name: "anonymous when disabled",
			conf: configs.AuthConfig{Enabled: false},
			path: "/photos",
			want: middleware.AnonymousUser,
		},
		{
			name:    "skipped path",
			conf:    configs.AuthConfig{Enabled: true, SkipPaths: []string{"/health"}},
			path:    "/health",
			headers: map[string]string{"X-User": "dave"},
			want:    "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			echo(tc.conf).ServeHTTP(w, req)

			if w.Body.String() != tc.want {
				t.Errorf("user = %q, want %q", w.Body.String(), tc.want)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	e := gin.New()
	e.Use(middleware.UserMiddleware(configs.AuthConfig{Enabled: true}))
	e.POST("/upload", middleware.RequireUser(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set(middleware.DefaultUserHeader, "alice")

	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("identified status = %d, want 204", w.Code)
	}
}

func TestRequireMinRole(t *testing.T) {
	e := gin.New()
	e.Use(middleware.RoleMiddleware())
	e.GET("/ops", middleware.RequireMinRole(middleware.RoleOperator), func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetRole(c).String())
	})

	tests := []struct {
		role string
		code int
	}{
		{"", http.StatusForbidden},
		{"user", http.StatusForbidden},
		{"bogus", http.StatusForbidden},
		{"ops", http.StatusOK},
		{"Operator", http.StatusOK},
		{"admin", http.StatusOK},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ops", nil)
		if tc.role != "" {
			req.Header.Set(middleware.HeaderRole, tc.role)
		}

		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)

		if w.Code != tc.code {
			t.Errorf("role %q: status = %d, want %d", tc.role, w.Code, tc.code)
		}
	}
}

func TestETagMiddleware(t *testing.T) {
	e := gin.New()
	e.Use(middleware.ETagMiddleware(64))
	e.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "status=PROCESSED") })
	e.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("a", 200)) })
	e.GET("/missing", func(c *gin.Context) { c.String(http.StatusNotFound, "gone") })

	get := func(path, inm string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if inm != "" {
			req.Header.Set("If-None-Match", inm)
		}

		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)

		return w
	}

	first := get("/small", "")
	etag := first.Header().Get("ETag")

	if first.Code != http.StatusOK || etag == "" {
		t.Fatalf("first = %d etag %q, want 200 with etag", first.Code, etag)
	}

	if first.Body.String() != "status=PROCESSED" {
		t.Errorf("body = %q", first.Body.String())
	}

	if w := get("/small", etag); w.Code != http.StatusNotModified {
		t.Errorf("revalidation = %d, want 304", w.Code)
	}

	if w := get("/small", `W/"0"`); w.Code != http.StatusOK {
		t.Errorf("stale etag = %d, want 200", w.Code)
	}

	large := get("/large", "")
	if large.Header().Get("ETag") != "" || large.Body.Len() != 200 {
		t.Errorf("large body: etag %q len %d, want passthrough", large.Header().Get("ETag"), large.Body.Len())
	}

	if w := get("/missing", ""); w.Code != http.StatusNotFound || w.Header().Get("ETag") != "" {
		t.Errorf("404 = %d etag %q, want no etag", w.Code, w.Header().Get("ETag"))
	}
}
