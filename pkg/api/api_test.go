package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/photovault/pkg/api"
	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/internal/types"
	"github.com/yeisme/photovault/pkg/middleware"
	"github.com/yeisme/photovault/pkg/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine 组装与进程内一致的中间件链，scheduler 可为 nil.
func newEngine(t *testing.T, sched *scheduler.Scheduler) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("local blob: %v", err)
	}

	d := service.Deps{
		Photos:    repository.NewPhotoRepository(db),
		Events:    repository.NewEventRepository(db),
		Queue:     repository.NewQueueRepository(db),
		Blob:      store,
		Publisher: events.Noop{},
		Photo: configs.PhotoConfig{
			MaxUploadBytes: 1 << 20,
			MaxRetries:     3,
			KeyPrefix:      "photos",
		},
	}

	e := gin.New()
	e.Use(
		middleware.CorrelationMiddleware(),
		middleware.UserMiddleware(configs.AuthConfig{Enabled: true, UserHeader: "X-User"}),
		middleware.RoleMiddleware(),
	)

	if sched != nil {
		e.Use(middleware.SchedulerMiddleware(sched))
	}

	e.Use(middleware.ServicesMiddleware(&middleware.Services{
		Upload:    service.NewUploadService(d, nil),
		Photos:    service.NewPhotoService(d, nil),
		Publisher: d.Publisher,
	}))

	return api.RegisterGroup(e, configs.ServerConfig{})
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := range 32 {
		for y := range 24 {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	return buf.Bytes()
}

func uploadRequest(t *testing.T, user, contentType string, body []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="beach.jpg"`)
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}

	if _, err := part.Write(body); err != nil {
		t.Fatalf("write part: %v", err)
	}

	_ = mw.WriteField("description", "sunset")
	_ = mw.WriteField("tags", "beach, summer")

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/photos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if user != "" {
		req.Header.Set("X-User", user)
	}

	return req
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func TestUploadPhoto(t *testing.T) {
	e := newEngine(t, nil)

	t.Run("missing user", func(t *testing.T) {
		w := serve(e, uploadRequest(t, "", "image/jpeg", jpegBytes(t)))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401: %s", w.Code, w.Body.String())
		}
	})

	t.Run("not an image", func(t *testing.T) {
		w := serve(e, uploadRequest(t, "alice", "image/jpeg", []byte("plain text pretending to be a photo")))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
		}
	})

	t.Run("accepted", func(t *testing.T) {
		req := uploadRequest(t, "alice", "image/jpeg", jpegBytes(t))
		req.Header.Set(middleware.HeaderCorrelationID, "cid-upload-1")

		w := serve(e, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}

		var resp types.AcceptedResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}

		if resp.Photo == nil || resp.Photo.ID == 0 {
			t.Fatalf("photo missing in response: %s", w.Body.String())
		}

		if got, want := w.Header().Get("Location"), fmt.Sprintf("/api/v1/photos/%d", resp.Photo.ID); got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}

		if resp.CorrelationID != "cid-upload-1" {
			t.Errorf("correlation = %q, want cid-upload-1", resp.CorrelationID)
		}

		if got := resp.Photo.Tags; len(got) != 2 || got[0] != "beach" || got[1] != "summer" {
			t.Errorf("tags = %v, want [beach summer]", got)
		}

		dup := serve(e, uploadRequest(t, "bob", "image/jpeg", jpegBytes(t)))
		if dup.Code != http.StatusConflict {
			t.Errorf("duplicate upload status = %d, want 409", dup.Code)
		}
	})
}

func TestPhotoReads(t *testing.T) {
	e := newEngine(t, nil)

	w := serve(e, uploadRequest(t, "alice", "image/jpeg", jpegBytes(t)))
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	loc := w.Header().Get("Location")

	cases := []struct {
		name string
		path string
		want int
	}{
		{"get", loc, http.StatusOK},
		{"bad id", "/api/v1/photos/abc", http.StatusBadRequest},
		{"zero id", "/api/v1/photos/0", http.StatusBadRequest},
		{"missing", "/api/v1/photos/9999", http.StatusNotFound},
		{"list by user", "/api/v1/photos?userId=alice", http.StatusOK},
		{"list without filter", "/api/v1/photos", http.StatusBadRequest},
		{"list unknown status", "/api/v1/photos?status=melted", http.StatusBadRequest},
		{"list oversized page", "/api/v1/photos?userId=alice&size=1000", http.StatusBadRequest},
		{"events", loc + "/events", http.StatusOK},
		{"download", loc + "/download", http.StatusFound},
		{"download bad variant", loc + "/download?variant=poster", http.StatusBadRequest},
		{"download missing thumbnail", loc + "/download?variant=thumbnail", http.StatusNotFound},
		{"stats", "/api/v1/photos/stats", http.StatusOK},
		{"health", "/health", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(e, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if w.Code != tc.want {
				t.Errorf("GET %s = %d, want %d: %s", tc.path, w.Code, tc.want, w.Body.String())
			}
		})
	}

	list := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/photos?userId=alice", nil))

	var resp types.ListPhotosResponse
	if err := json.Unmarshal(list.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}

	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].UserID != "alice" {
		t.Errorf("list = %+v, want one photo of alice", resp)
	}

	dl := serve(e, httptest.NewRequest(http.MethodGet, loc+"/download", nil))
	if !strings.HasPrefix(dl.Header().Get("Location"), "file://") {
		t.Errorf("download Location = %q, want file:// url", dl.Header().Get("Location"))
	}
}

func TestETag(t *testing.T) {
	e := newEngine(t, nil)

	w := serve(e, uploadRequest(t, "alice", "image/jpeg", jpegBytes(t)))
	loc := w.Header().Get("Location")

	first := serve(e, httptest.NewRequest(http.MethodGet, loc, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", first.Code)
	}

	etag := first.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("ETag = %q, want weak etag", etag)
	}

	req := httptest.NewRequest(http.MethodGet, loc, nil)
	req.Header.Set("If-None-Match", etag)

	second := serve(e, req)
	if second.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", second.Code)
	}

	if second.Body.Len() != 0 {
		t.Errorf("304 body = %q, want empty", second.Body.String())
	}
}

func TestSchedulerRoutes(t *testing.T) {
	t.Run("requires operator", func(t *testing.T) {
		e := newEngine(t, nil)

		w := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/jobs", nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("scheduler not initialized", func(t *testing.T) {
		e := newEngine(t, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/jobs", nil)
		req.Header.Set(middleware.HeaderRole, "operator")

		if w := serve(e, req); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
	})

	t.Run("admin only stop", func(t *testing.T) {
		sched, err := scheduler.NewScheduler()
		if err != nil {
			t.Fatalf("NewScheduler: %v", err)
		}
		t.Cleanup(func() { _ = sched.Shutdown() })

		e := newEngine(t, sched)

		list := httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/jobs", nil)
		list.Header.Set(middleware.HeaderRole, "operator")

		if w := serve(e, list); w.Code != http.StatusOK {
			t.Fatalf("list status = %d, want 200: %s", w.Code, w.Body.String())
		}

		stop := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/jobs/stop", nil)
		stop.Header.Set(middleware.HeaderRole, "operator")

		if w := serve(e, stop); w.Code != http.StatusForbidden {
			t.Fatalf("stop status = %d, want 403", w.Code)
		}
	})
}
