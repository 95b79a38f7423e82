package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/configs"
	ctxPkg "github.com/yeisme/photovault/pkg/context"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/service"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
	"github.com/yeisme/photovault/pkg/internal/worker"
	"github.com/yeisme/photovault/pkg/queue"
)

// memBlob 内存对象存储，可按次数注入缩略图与原图写入失败.
type memBlob struct {
	mu           sync.Mutex
	objects      map[string][]byte
	thumbFails   int // 剩余的缩略图写入失败次数，负数表示一直失败
	originalFail bool

	stall   chan struct{} // 非 nil 时 Download 发出信号后阻塞到 ctx 结束
	onThumb func()        // 缩略图写入前回调
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Provider() string { return "memory" }

func (m *memBlob) Upload(_ context.Context, key string, r io.Reader, _ string, _ int64) (string, error) {
	if strings.Contains(key, "_thumb") && m.onThumb != nil {
		m.onThumb()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.Contains(key, "_thumb") {
		if m.thumbFails != 0 {
			m.thumbFails--

			return "", &errs.StorageFailure{Provider: "memory", Operation: "upload", Err: errors.New("disk full")}
		}
	} else if m.originalFail {
		return "", &errs.StorageFailure{Provider: "memory", Operation: "upload", Err: errors.New("unreachable")}
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.objects[key] = b

	return "mem://" + key, nil
}

func (m *memBlob) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.stall != nil {
		select {
		case m.stall <- struct{}{}:
		default:
		}

		<-ctx.Done()

		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.objects[key]
	if !ok {
		return nil, errs.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlob) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	delete(m.objects, key)

	return ok, nil
}

func (m *memBlob) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]

	return ok, nil
}

func (m *memBlob) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("mem://%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (m *memBlob) Metadata(_ context.Context, key string) (*blob.ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.objects[key]
	if !ok {
		return nil, errs.ErrObjectNotFound
	}

	return &blob.ObjectMeta{Key: key, Size: int64(len(b))}, nil
}

func (m *memBlob) has(key string) bool {
	ok, _ := m.Exists(context.Background(), key)

	return ok
}

// recPublisher 记录发布的事件.
type recPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recPublisher) Publish(ctx context.Context, evt queue.Event) error {
	return p.PublishTopic(ctx, evt.Topic(), evt)
}

func (p *recPublisher) PublishTopic(ctx context.Context, topic string, evt queue.Event) error {
	return p.PublishWithCorrelation(ctx, topic, evt, evt.Correlation())
}

func (p *recPublisher) PublishWithCorrelation(_ context.Context, _ string, evt queue.Event, correlationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	evt.SetCorrelation(correlationID)
	p.events = append(p.events, evt)

	return nil
}

func (p *recPublisher) IsAvailable(context.Context) bool { return true }

func (p *recPublisher) ProviderType() string { return "recording" }

// terminal 报告照片是否已发布 ProcessingCompleted 或不再重试的 ProcessingFailed.
func (p *recPublisher) terminal(id uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.events {
		if e.PhotoRef() != id {
			continue
		}

		switch evt := e.(type) {
		case *queue.ProcessingCompleted:
			return true
		case *queue.ProcessingFailed:
			if !evt.WillRetry {
				return true
			}
		}
	}

	return false
}

func (p *recPublisher) named(name string) []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []queue.Event

	for _, e := range p.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}

	return out
}

// conflictOnce arm 之后的第一次 Update 返回版本冲突.
type conflictOnce struct {
	repository.PhotoRepository
	mu    sync.Mutex
	armed bool
}

func (c *conflictOnce) arm() {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()
}

func (c *conflictOnce) Update(ctx context.Context, p *model.Photo) error {
	c.mu.Lock()
	fire := c.armed
	c.armed = false
	c.mu.Unlock()

	if fire {
		return errs.ErrVersionConflict
	}

	return c.PhotoRepository.Update(ctx, p)
}

type env struct {
	photos  repository.PhotoRepository
	events  *repository.GormEventRepository
	blob    *memBlob
	pub     *recPublisher
	orch    *service.Orchestrator
	uploads *service.UploadService
	photo   *service.PhotoService
}

func photoConfig() configs.PhotoConfig {
	return configs.PhotoConfig{
		MaxUploadBytes:    configs.DefaultMaxUploadBytes,
		MaxRetries:        3,
		MaxTotalAttempts:  10,
		RetryBaseMillis:   1,
		KeyPrefix:         "photos",
		Thumbnail:         configs.ThumbnailConfig{Width: 300, Height: 300, Quality: 90},
		CacheTTL:          time.Minute,
		EventCacheTTL:     time.Minute,
		StuckAfterMinutes: 30,
		MaxConflictReload: 3,
	}
}

func newEnv(t *testing.T, tune func(*configs.PhotoConfig, *service.Deps)) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	pool := worker.New(worker.Options{Core: 4, Max: 8, Queue: 16})

	e := &env{
		events: repository.NewEventRepository(db),
		blob:   newMemBlob(),
		pub:    &recPublisher{},
	}

	d := service.Deps{
		Photos:    repository.NewPhotoRepository(db),
		Events:    e.events,
		Queue:     repository.NewQueueRepository(db),
		Blob:      e.blob,
		Publisher: e.pub,
		Pool:      pool,
		Cache:     cache.NewCache(store),
		Photo:     photoConfig(),
	}

	if tune != nil {
		tune(&d.Photo, &d)
	}

	e.photos = d.Photos
	e.orch = service.NewOrchestrator(d)
	e.uploads = service.NewUploadService(d, nil)
	e.photo = service.NewPhotoService(d, e.orch)

	t.Cleanup(func() {
		e.orch.Close()
		_ = pool.Shutdown(context.Background())
		_ = sqlDB.Close()
	})

	return e
}

// jpegBytes 生成 w×h 的 JPEG，seed 决定颜色，padTo 大于实际长度时在文件尾补零.
func jpegBytes(t *testing.T, w, h int, seed uint8, padTo int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))

	if padTo > buf.Len() {
		buf.Write(make([]byte, padTo-buf.Len()))
	}

	return buf.Bytes()
}

func (e *env) upload(t *testing.T, ctx context.Context, data []byte) *model.Photo {
	t.Helper()

	p, err := e.uploads.Upload(ctx, &service.UploadRequest{
		UserID:      "alice",
		Body:        bytes.NewReader(data),
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
		Filename:    "holiday.JPG",
		Tags:        []string{"beach", " ", "2024"},
	})
	require.NoError(t, err)
	require.NotNil(t, p)

	return p
}

// settle 等待照片的重试链结束，返回最终记录.
func (e *env) settle(t *testing.T, id uint) *model.Photo {
	t.Helper()

	require.Eventually(t, func() bool { return e.pub.terminal(id) }, 5*time.Second, 5*time.Millisecond)

	got, err := e.photos.FindByID(context.Background(), id)
	require.NoError(t, err)

	return got
}

func (e *env) eventTypes(t *testing.T, id uint) map[model.EventType][]model.PhotoEvent {
	t.Helper()

	list, err := e.events.ListByPhoto(context.Background(), id)
	require.NoError(t, err)

	out := make(map[model.EventType][]model.PhotoEvent)
	for _, ev := range list {
		out[ev.EventType] = append(out[ev.EventType], ev)
	}

	return out
}

func TestUploadAndProcess_LargeJPEG(t *testing.T) {
	e := newEnv(t, nil)
	ctx := ctxPkg.WithCorrelationID(context.Background(), "cid-a")

	data := jpegBytes(t, 1200, 800, 1, 10<<20)
	p := e.upload(t, ctx, data)

	assert.Equal(t, model.StatusUploaded, p.Status)
	assert.Equal(t, int64(10<<20), p.FileSize)
	assert.Equal(t, "image/jpeg", p.ContentType)
	assert.Equal(t, "beach,2024", p.Tags)
	assert.Regexp(t, `^photos/alice/\d+/[0-9A-Z]{26}\.jpg$`, p.StorageKey)
	assert.True(t, e.blob.has(p.StorageKey))

	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-a"))

	got, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Equal(t, 1200, got.Width)
	assert.Equal(t, 800, got.Height)
	assert.Equal(t, model.ThumbnailKeyFor(p.StorageKey, ".jpg"), got.ThumbnailKey)
	assert.True(t, e.blob.has(got.ThumbnailKey))
	assert.Zero(t, got.RetryCount)

	types := e.eventTypes(t, p.ID)
	for _, typ := range []model.EventType{
		model.EventUploadStarted, model.EventUploaded, model.EventProcessingStarted,
		model.EventThumbnailGenerated, model.EventProcessingCompleted,
	} {
		require.Len(t, types[typ], 1, string(typ))
		assert.Equal(t, "cid-a", types[typ][0].CorrelationID)
	}

	assert.Len(t, e.pub.named(queue.EventPhotoUploaded), 1)
	assert.Len(t, e.pub.named(queue.EventProcessingStarted), 1)
	completed := e.pub.named(queue.EventProcessingCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "cid-a", completed[0].Correlation())
}

func TestProcess_ThumbnailFailsTwiceThenSucceeds(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 64, 64, 2, 0))
	e.blob.thumbFails = 2

	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-b"))

	got := e.settle(t, p.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, 2, got.TotalAttempts)

	types := e.eventTypes(t, p.ID)
	assert.Len(t, types[model.EventProcessingFailed], 2)
	assert.Len(t, types[model.EventRetryScheduled], 2)
	assert.Len(t, types[model.EventProcessingStarted], 3)
	assert.Len(t, types[model.EventProcessingCompleted], 1)

	thumbs := types[model.EventThumbnailGenerated]
	require.Len(t, thumbs, 3)

	var failedThumbs int
	for _, ev := range thumbs {
		assert.Equal(t, "cid-b", ev.CorrelationID)

		if !ev.Success {
			failedThumbs++
			assert.Contains(t, ev.ErrorMessage, "disk full")
		}
	}

	assert.Equal(t, 2, failedThumbs)

	failed := e.pub.named(queue.EventProcessingFailed)
	require.Len(t, failed, 2)

	for i, evt := range failed {
		pf, ok := evt.(*queue.ProcessingFailed)
		require.True(t, ok)
		assert.True(t, pf.WillRetry)
		assert.Equal(t, i+1, pf.RetryCount)
		assert.Equal(t, "ProcessingStageFailure", pf.ErrorType)
	}

	assert.False(t, e.orch.HasPendingRetry(p.ID))
}

func TestProcess_MetadataFailureDoesNotFailPhoto(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 32, 32, 3, 0))

	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-c"))

	got, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "{}", got.Metadata)

	md := e.eventTypes(t, p.ID)[model.EventMetadataExtracted]
	require.Len(t, md, 1)
	assert.False(t, md[0].Success)
	assert.NotEmpty(t, md[0].ErrorMessage)
}

func TestProcess_ThumbnailAlwaysFails(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 32, 32, 4, 0))
	e.blob.thumbFails = -1

	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-d"))

	got := e.settle(t, p.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Contains(t, got.LastError, "thumbnail")

	types := e.eventTypes(t, p.ID)
	assert.Len(t, types[model.EventProcessingFailed], 3)
	assert.Len(t, types[model.EventRetryScheduled], 2)
	assert.Empty(t, types[model.EventProcessingCompleted])

	thumbs := types[model.EventThumbnailGenerated]
	require.Len(t, thumbs, 3)

	for _, ev := range thumbs {
		assert.False(t, ev.Success)
		assert.NotEmpty(t, ev.ErrorMessage)
	}

	failed := e.pub.named(queue.EventProcessingFailed)
	require.Len(t, failed, 3)
	last, ok := failed[2].(*queue.ProcessingFailed)
	require.True(t, ok)
	assert.False(t, last.WillRetry)
}

func TestProcess_CompletedIsNoop(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 5, 0))
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid"))
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid"))

	assert.Len(t, e.eventTypes(t, p.ID)[model.EventProcessingCompleted], 1)
	assert.Len(t, e.pub.named(queue.EventProcessingCompleted), 1)

	assert.NoError(t, e.orch.Process(ctx, 9999, "cid"))
}

func TestProcess_ReloadsOnVersionConflict(t *testing.T) {
	var repo *conflictOnce

	e := newEnv(t, func(_ *configs.PhotoConfig, d *service.Deps) {
		repo = &conflictOnce{PhotoRepository: d.Photos}
		d.Photos = repo
	})
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 6, 0))

	repo.arm()
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid"))

	got, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestUpload_Duplicate(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	data := jpegBytes(t, 16, 16, 7, 0)
	first := e.upload(t, ctx, data)

	_, err := e.uploads.Upload(ctx, &service.UploadRequest{
		UserID: "bob", Body: bytes.NewReader(data), ContentType: "image/jpeg", Size: -1, Filename: "copy.jpg",
	})

	var dup *errs.DuplicateContent
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
}

func TestUpload_Validation(t *testing.T) {
	e := newEnv(t, func(c *configs.PhotoConfig, _ *service.Deps) {
		c.MaxUploadBytes = 1 << 10
	})
	ctx := context.Background()

	small := jpegBytes(t, 8, 8, 8, 0)

	cases := []struct {
		name string
		req  *service.UploadRequest
		want any
	}{
		{"no user", &service.UploadRequest{Body: bytes.NewReader(small), ContentType: "image/jpeg", Size: -1, Filename: "a.jpg"}, &errs.ValidationError{}},
		{"not image type", &service.UploadRequest{UserID: "u", Body: bytes.NewReader(small), ContentType: "text/plain", Size: -1, Filename: "a.txt"}, &errs.ValidationError{}},
		{"declared too large", &service.UploadRequest{UserID: "u", Body: bytes.NewReader(small), ContentType: "image/jpeg", Size: 2 << 10, Filename: "a.jpg"}, &errs.PayloadTooLarge{}},
		{"stream too large", &service.UploadRequest{UserID: "u", Body: bytes.NewReader(make([]byte, 4<<10)), ContentType: "image/jpeg", Size: -1, Filename: "a.jpg"}, &errs.PayloadTooLarge{}},
		{"empty", &service.UploadRequest{UserID: "u", Body: bytes.NewReader(nil), ContentType: "image/jpeg", Size: -1, Filename: "a.jpg"}, &errs.ValidationError{}},
		{"sniffed not image", &service.UploadRequest{UserID: "u", Body: strings.NewReader("hello world"), ContentType: "image/jpeg", Size: -1, Filename: "a.jpg"}, &errs.ValidationError{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.uploads.Upload(ctx, tc.req)
			require.Error(t, err)

			switch tc.want.(type) {
			case *errs.ValidationError:
				var ve *errs.ValidationError
				assert.ErrorAs(t, err, &ve)
			case *errs.PayloadTooLarge:
				var pl *errs.PayloadTooLarge
				assert.ErrorAs(t, err, &pl)
			}
		})
	}

	counts, err := e.photos.CountByStatus(ctx)
	require.NoError(t, err)

	var total int64
	for _, n := range counts {
		total += n
	}

	assert.Zero(t, total, "rejected uploads must not persist photos")
}

func TestUpload_StorageFailureReleasesChecksum(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	data := jpegBytes(t, 16, 16, 9, 0)
	e.blob.originalFail = true

	p := e.upload(t, ctx, data)
	assert.Equal(t, model.StatusFailed, p.Status)
	assert.Empty(t, p.StorageKey)
	assert.Nil(t, p.Checksum)
	assert.Contains(t, p.LastError, "unreachable")

	uploaded := e.eventTypes(t, p.ID)[model.EventUploaded]
	require.Len(t, uploaded, 1)
	assert.False(t, uploaded[0].Success)

	e.blob.originalFail = false
	again := e.upload(t, ctx, data)
	assert.Equal(t, model.StatusUploaded, again.Status)

	_, _, err := e.photo.Retry(ctx, p.ID)

	var conflict *errs.Conflict
	assert.ErrorAs(t, err, &conflict)
}

func TestRetry_ManualAfterFailure(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 32, 32, 10, 0))
	e.blob.thumbFails = -1
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid"))
	require.Equal(t, model.StatusFailed, e.settle(t, p.ID).Status)

	e.blob.mu.Lock()
	e.blob.thumbFails = 0
	e.blob.mu.Unlock()

	retried, cid, err := e.photo.Retry(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, cid)
	assert.Equal(t, model.StatusPending, retried.Status)
	assert.Zero(t, retried.RetryCount)
	assert.Empty(t, retried.LastError)

	require.Eventually(t, func() bool {
		got, err := e.photos.FindByID(ctx, p.ID)

		return err == nil && got.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	got, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalAttempts, "total attempts survive manual retry")

	_, _, err = e.photo.Retry(ctx, p.ID)

	var conflict *errs.Conflict
	assert.ErrorAs(t, err, &conflict)
}

func TestRetry_RejectedBeyondTotalAttempts(t *testing.T) {
	e := newEnv(t, func(c *configs.PhotoConfig, _ *service.Deps) {
		c.MaxTotalAttempts = 2
	})
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 11, 0))
	e.blob.thumbFails = -1
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid"))

	got := e.settle(t, p.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, 2, got.TotalAttempts)

	_, _, err := e.photo.Retry(ctx, p.ID)

	var conflict *errs.Conflict
	assert.ErrorAs(t, err, &conflict)
}

func TestDelete_CancelsPendingRetry(t *testing.T) {
	e := newEnv(t, func(c *configs.PhotoConfig, _ *service.Deps) {
		c.RetryBaseMillis = 60_000
	})
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 12, 0))
	e.blob.thumbFails = -1

	require.NoError(t, e.orch.Process(ctx, p.ID, "cid"))
	require.True(t, e.orch.HasPendingRetry(p.ID))

	require.NoError(t, e.photo.Delete(ctx, p.ID))

	assert.False(t, e.orch.HasPendingRetry(p.ID))
	assert.False(t, e.blob.has(p.StorageKey))

	_, err := e.photos.FindByID(ctx, p.ID)
	assert.True(t, errs.IsNotFound(err))
	assert.Len(t, e.pub.named(queue.EventPhotoDeleted), 1)
	assert.Len(t, e.eventTypes(t, p.ID)[model.EventDeleted], 1)
}

func TestPhotoService_QueriesAndStats(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 13, 0))
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-q"))

	got, err := e.photo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	_, err = e.photo.Get(ctx, 4242)
	assert.True(t, errs.IsNotFound(err))

	list, total, _, err := e.photo.List(ctx, service.ListQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	_, _, _, err = e.photo.List(ctx, service.ListQuery{})
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, _, _, err = e.photo.List(ctx, service.ListQuery{Status: "BOGUS"})
	assert.ErrorAs(t, err, &ve)

	evs, err := e.photo.Events(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventUploadStarted, evs[0].EventType)

	byCid, err := e.photo.CorrelationEvents(ctx, "cid-q")
	require.NoError(t, err)
	assert.NotEmpty(t, byCid)

	url, err := e.photo.DownloadURL(ctx, p.ID, service.VariantThumbnail)
	require.NoError(t, err)
	assert.Contains(t, url, "_thumb")

	_, err = e.photo.DownloadURL(ctx, p.ID, "raw")
	assert.ErrorAs(t, err, &ve)

	stats, err := e.photo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Photos[string(model.StatusCompleted)])
	assert.Equal(t, "recording", stats.Publisher)
	require.NotNil(t, stats.Worker)
}

func TestPurgeObjects_RemovesLeftovers(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 14, 0))
	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-purge"))

	done, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, e.blob.has(done.ThumbnailKey))

	item := &model.ProcessingQueueItem{CommandType: model.CommandDeletePhoto}
	evt := queue.NewPhotoDeleted(p.ID, p.UserID, done.StorageKey, "cid-purge")

	require.NoError(t, e.photo.PurgeObjects(ctx, item, evt))
	assert.False(t, e.blob.has(done.StorageKey))
	assert.False(t, e.blob.has(done.ThumbnailKey))

	// 再次执行幂等
	require.NoError(t, e.photo.PurgeObjects(ctx, item, evt))

	err = e.photo.PurgeObjects(ctx, item, queue.NewProcessingStarted(p.ID, p.UserID, "cid-purge"))
	assert.Error(t, err)
}

// failProcessingUpdate 持久化 PROCESSING 迁移时返回数据库错误.
type failProcessingUpdate struct {
	repository.PhotoRepository
}

func (f *failProcessingUpdate) Update(ctx context.Context, p *model.Photo) error {
	if p.Status == model.StatusProcessing {
		return errors.New("database is locked")
	}

	return f.PhotoRepository.Update(ctx, p)
}

func TestProcess_CancelledMidDeriveLandsInRetrying(t *testing.T) {
	e := newEnv(t, func(c *configs.PhotoConfig, _ *service.Deps) {
		c.RetryBaseMillis = 60_000
	})

	p := e.upload(t, context.Background(), jpegBytes(t, 16, 16, 15, 0))
	e.blob.stall = make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- e.orch.Process(ctx, p.ID, "cid-stop") }()

	select {
	case <-e.blob.stall:
	case <-time.After(5 * time.Second):
		t.Fatal("derive did not start")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not return after cancel")
	}

	got, err := e.photos.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRetrying, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Contains(t, got.LastError, "context canceled")
	assert.True(t, e.orch.HasPendingRetry(p.ID))

	types := e.eventTypes(t, p.ID)
	require.Len(t, types[model.EventProcessingFailed], 1)
	assert.Equal(t, "cid-stop", types[model.EventProcessingFailed][0].CorrelationID)
	assert.Len(t, types[model.EventRetryScheduled], 1)

	failed := e.pub.named(queue.EventProcessingFailed)
	require.Len(t, failed, 1)
	pf, ok := failed[0].(*queue.ProcessingFailed)
	require.True(t, ok)
	assert.True(t, pf.WillRetry)
}

func TestSweep_RecoversInterruptedProcessing(t *testing.T) {
	e := newEnv(t, func(c *configs.PhotoConfig, _ *service.Deps) {
		c.StuckAfterMinutes = 0
	})
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 16, 0))

	// 进程在处理中途退出后遗留的 PROCESSING 记录
	cur, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, cur.TransitionTo(model.StatusProcessing, time.Now()))
	require.NoError(t, e.photos.Update(ctx, cur))

	time.Sleep(10 * time.Millisecond)

	n, err := e.photo.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := e.settle(t, p.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Zero(t, got.RetryCount)

	recovered := e.eventTypes(t, p.ID)[model.EventRetryScheduled]
	require.Len(t, recovered, 1)
	assert.Contains(t, recovered[0].Details, "interrupted")
}

func TestProcess_RetryBackoffReleasesWorker(t *testing.T) {
	small := worker.New(worker.Options{Core: 1, Max: 1, Queue: 1})
	t.Cleanup(func() { _ = small.Shutdown(context.Background()) })

	e := newEnv(t, func(c *configs.PhotoConfig, d *service.Deps) {
		c.RetryBaseMillis = 60_000
		d.Pool = small
	})
	ctx := context.Background()

	first := e.upload(t, ctx, jpegBytes(t, 16, 16, 17, 0))
	second := e.upload(t, ctx, jpegBytes(t, 16, 16, 18, 0))
	e.blob.thumbFails = 1

	e.orch.Submit(ctx, first.ID, "cid-first")

	require.Eventually(t, func() bool {
		return e.orch.HasPendingRetry(first.ID) && small.Stats().Active == 0
	}, 5*time.Second, 5*time.Millisecond, "backoff must not occupy the only worker")

	e.orch.Submit(ctx, second.ID, "cid-second")

	got := e.settle(t, second.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)

	waiting, err := e.photos.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRetrying, waiting.Status)
	assert.True(t, e.orch.HasPendingRetry(first.ID))
	assert.Equal(t, 1, e.orch.PendingRetries())
}

func TestProcess_ProcessingPersistFailureIsRecorded(t *testing.T) {
	e := newEnv(t, func(_ *configs.PhotoConfig, d *service.Deps) {
		d.Photos = &failProcessingUpdate{PhotoRepository: d.Photos}
	})
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 19, 0))

	err := e.orch.Process(ctx, p.ID, "cid-locked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	got, err := e.photos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, got.Status)

	started := e.eventTypes(t, p.ID)[model.EventProcessingStarted]
	require.Len(t, started, 1)
	assert.False(t, started[0].Success)
	assert.Contains(t, started[0].ErrorMessage, "database is locked")
	assert.Empty(t, e.pub.named(queue.EventProcessingStarted))
}

func TestProcess_DeletedMidThumbnailRemovesThumbnail(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	p := e.upload(t, ctx, jpegBytes(t, 16, 16, 20, 0))

	var once sync.Once
	e.blob.onThumb = func() {
		once.Do(func() { assert.NoError(t, e.photo.Delete(ctx, p.ID)) })
	}

	require.NoError(t, e.orch.Process(ctx, p.ID, "cid-gone"))

	_, err := e.photos.FindByID(ctx, p.ID)
	assert.True(t, errs.IsNotFound(err))
	assert.False(t, e.blob.has(p.StorageKey))
	assert.False(t, e.blob.has(model.ThumbnailKeyFor(p.StorageKey, ".jpg")))
	assert.Empty(t, e.pub.named(queue.EventProcessingCompleted))
}
