package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
)

// flakyStorage 前 failures 次调用失败的假后端.
type flakyStorage struct {
	mu       sync.Mutex
	name     string
	failures int
	calls    map[string]int
	bodies   []string
}

func newFlaky(name string, failures int) *flakyStorage {
	return &flakyStorage{name: name, failures: failures, calls: map[string]int{}}
}

func (f *flakyStorage) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++
	if f.failures > 0 {
		f.failures--

		return &errs.StorageFailure{Provider: f.name, Operation: op, Err: errors.New("503 slow down")}
	}

	return nil
}

func (f *flakyStorage) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

func (f *flakyStorage) Upload(_ context.Context, key string, r io.Reader, _ string, _ int64) (string, error) {
	b, _ := io.ReadAll(r)

	f.mu.Lock()
	f.bodies = append(f.bodies, string(b))
	f.mu.Unlock()

	if err := f.hit(blob.OpUpload); err != nil {
		return "", err
	}

	return "mem://" + key, nil
}

func (f *flakyStorage) Download(context.Context, string) (io.ReadCloser, error) {
	if err := f.hit(blob.OpDownload); err != nil {
		return nil, err
	}

	return io.NopCloser(strings.NewReader("data")), nil
}

func (f *flakyStorage) Delete(context.Context, string) (bool, error) {
	return true, f.hit(blob.OpDelete)
}

func (f *flakyStorage) Exists(context.Context, string) (bool, error) {
	if err := f.hit(blob.OpExists); err != nil {
		return false, err
	}

	return true, nil
}

func (f *flakyStorage) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	return "mem://" + key, f.hit(blob.OpPresign)
}

func (f *flakyStorage) Metadata(_ context.Context, key string) (*blob.ObjectMeta, error) {
	return &blob.ObjectMeta{Key: key}, f.hit(blob.OpMetadata)
}

func (f *flakyStorage) Provider() string { return f.name }

func testRegistry() *resilience.Registry {
	return resilience.NewRegistry(configs.ResilienceConfig{
		Default: configs.CircuitBreakerConfig{
			Enabled:           true,
			FailureRate:       0.5,
			SlowCallRate:      1,
			SlowCallMillis:    2000,
			WindowSize:        10,
			MinRequests:       5,
			OpenMillis:        10000,
			MaxRequestsInHalf: 1,
		},
		Retry: configs.RetryConfig{MaxAttempts: 3, BaseMillis: 1},
	})
}

func TestResilient_RetriesAndRewindsUpload(t *testing.T) {
	fake := newFlaky("fake-rewind", 2)
	s := blob.NewResilient(fake, testRegistry())

	url, err := s.Upload(context.Background(), "k.jpg", bytes.NewReader([]byte("payload")), "image/jpeg", 7)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if url != "mem://k.jpg" || fake.count(blob.OpUpload) != 3 {
		t.Errorf("url=%s calls=%d", url, fake.count(blob.OpUpload))
	}

	for i, body := range fake.bodies {
		if body != "payload" {
			t.Errorf("attempt %d saw body %q, reader was not rewound", i+1, body)
		}
	}
}

func TestResilient_NonSeekableUploadNotRetried(t *testing.T) {
	fake := newFlaky("fake-noseek", 1)
	s := blob.NewResilient(fake, testRegistry())

	_, err := s.Upload(context.Background(), "k.jpg", io.MultiReader(strings.NewReader("x")), "image/jpeg", 1)
	if err == nil {
		t.Fatal("expected failure")
	}

	if fake.count(blob.OpUpload) != 1 {
		t.Errorf("calls = %d, want 1", fake.count(blob.OpUpload))
	}
}

func TestResilient_SurfacesStorageFailureAfterBudget(t *testing.T) {
	fake := newFlaky("fake-budget", 100)
	s := blob.NewResilient(fake, testRegistry())

	_, err := s.Download(context.Background(), "k.jpg")

	var sf *errs.StorageFailure
	if !errors.As(err, &sf) || sf.Provider != "fake-budget" {
		t.Fatalf("expected StorageFailure from fake-budget, got %v", err)
	}

	if fake.count(blob.OpDownload) != 3 {
		t.Errorf("calls = %d, want 3", fake.count(blob.OpDownload))
	}
}

func TestResilient_ExistsIsNotRetried(t *testing.T) {
	fake := newFlaky("fake-exists", 1)
	s := blob.NewResilient(fake, testRegistry())

	if _, err := s.Exists(context.Background(), "k.jpg"); err == nil {
		t.Fatal("expected failure")
	}

	if fake.count(blob.OpExists) != 1 {
		t.Errorf("calls = %d, want 1", fake.count(blob.OpExists))
	}
}

func TestResilient_OpenBreakerShortCircuits(t *testing.T) {
	fake := newFlaky("fake-open", 1000)
	s := blob.NewResilient(fake, testRegistry())

	for i := 0; i < 5; i++ {
		_, _ = s.Exists(context.Background(), "k.jpg")
	}

	if !s.Breaker().Open() {
		t.Fatalf("breaker state %s, want open", s.Breaker().State())
	}

	before := fake.count(blob.OpDownload)

	_, err := s.Download(context.Background(), "k.jpg")
	if !errs.IsCircuitOpen(err) {
		t.Fatalf("expected CircuitOpen, got %v", err)
	}

	if fake.count(blob.OpDownload) != before {
		t.Error("open breaker must not invoke the backend")
	}
}

func TestResilient_BackendsAreIsolated(t *testing.T) {
	reg := testRegistry()
	bad := blob.NewResilient(newFlaky("fake-bad", 1000), reg)
	good := blob.NewResilient(newFlaky("fake-good", 0), reg)

	for i := 0; i < 5; i++ {
		_, _ = bad.Exists(context.Background(), "k")
	}

	if !bad.Breaker().Open() {
		t.Fatal("bad backend breaker should be open")
	}

	if ok, err := good.Exists(context.Background(), "k"); err != nil || !ok {
		t.Errorf("good backend affected: %v, %v", ok, err)
	}
}
