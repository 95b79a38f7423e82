package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/resilience"
)

var errBackend = errors.New("backend unavailable")

func testBreakerConfig() configs.CircuitBreakerConfig {
	return configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		SlowCallRate:      1.0,
		SlowCallMillis:    1000,
		WindowSize:        10,
		MinRequests:       5,
		OpenMillis:        50,
		MaxRequestsInHalf: 2,
	}
}

func TestBreaker_OpensAfterMinimumCalls(t *testing.T) {
	b := resilience.NewBreaker("test-open", testBreakerConfig())

	for i := 0; i < 4; i++ {
		_ = b.Execute("upload", func() error { return errBackend })

		if b.Open() {
			t.Fatalf("breaker opened after %d calls, below minimum", i+1)
		}
	}

	_ = b.Execute("upload", func() error { return errBackend })

	if !b.Open() {
		t.Fatalf("breaker should be open, state=%s", b.State())
	}

	invoked := false
	err := b.Execute("upload", func() error {
		invoked = true

		return nil
	})

	var co *errs.CircuitOpen
	if !errors.As(err, &co) {
		t.Fatalf("expected CircuitOpen, got %v", err)
	}

	if invoked {
		t.Error("backend must not be invoked while the breaker is open")
	}

	if co.Name != "test-open" || co.Operation != "upload" {
		t.Errorf("unexpected CircuitOpen %+v", co)
	}
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := resilience.NewBreaker("test-below", testBreakerConfig())

	results := []error{nil, nil, nil, errBackend, errBackend}
	for _, r := range results {
		res := r
		_ = b.Execute("download", func() error { return res })
	}

	if b.Open() {
		t.Errorf("40%% failure rate must not open a 50%% breaker, state=%s", b.State())
	}
}

func TestBreaker_HalfOpenProbesClose(t *testing.T) {
	b := resilience.NewBreaker("test-half-open", testBreakerConfig())

	for i := 0; i < 5; i++ {
		_ = b.Execute("upload", func() error { return errBackend })
	}

	if !b.Open() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(80 * time.Millisecond)

	if b.State() != "half-open" {
		t.Fatalf("state = %s, want half-open", b.State())
	}

	for i := 0; i < 2; i++ {
		if err := b.Execute("upload", func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}

	if b.State() != "closed" {
		t.Errorf("state = %s, want closed after successful probes", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := resilience.NewBreaker("test-reopen", testBreakerConfig())

	for i := 0; i < 5; i++ {
		_ = b.Execute("upload", func() error { return errBackend })
	}

	time.Sleep(80 * time.Millisecond)

	_ = b.Execute("upload", func() error { return errBackend })

	if !b.Open() {
		t.Errorf("state = %s, want open after failed probe", b.State())
	}
}

func TestBreaker_SlowCallsOpen(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.SlowCallMillis = 1
	cfg.MinRequests = 2

	b := resilience.NewBreaker("test-slow", cfg)

	for i := 0; i < 2; i++ {
		err := b.Execute("upload", func() error {
			time.Sleep(5 * time.Millisecond)

			return nil
		})
		if err != nil {
			t.Fatalf("slow but successful call returned %v", err)
		}
	}

	if !b.Open() {
		t.Errorf("state = %s, want open after all-slow window", b.State())
	}
}

func TestBreaker_NotFoundIsNotFailure(t *testing.T) {
	b := resilience.NewBreaker("test-notfound", testBreakerConfig())

	for i := 0; i < 10; i++ {
		_ = b.Execute("metadata", func() error {
			return &errs.StorageFailure{Provider: "local", Operation: "metadata", Err: errs.ErrObjectNotFound}
		})
	}

	if b.Open() {
		t.Error("missing objects must not open the breaker")
	}
}

func TestBreaker_Disabled(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.Enabled = false

	b := resilience.NewBreaker("test-disabled", cfg)

	for i := 0; i < 20; i++ {
		_ = b.Execute("upload", func() error { return errBackend })
	}

	if b.Open() {
		t.Error("disabled breaker must never open")
	}
}

func TestRegistry_SharesBreakerPerName(t *testing.T) {
	cfg := configs.ResilienceConfig{
		Default: testBreakerConfig(),
		Backends: map[string]configs.CircuitBreakerConfig{
			"strict": {Enabled: true, FailureRate: 0.1, WindowSize: 2, MinRequests: 1, MaxRequestsInHalf: 1},
		},
	}
	r := resilience.NewRegistry(cfg)

	if r.Breaker("minio") != r.Breaker("minio") {
		t.Error("same name must return the same breaker")
	}

	_ = r.Breaker("strict").Execute("upload", func() error { return errBackend })

	if !r.Breaker("strict").Open() {
		t.Error("per-backend override not applied")
	}

	if r.Breaker("minio").Open() {
		t.Error("one backend's failures must not affect another")
	}

	if len(r.States()) != 2 {
		t.Errorf("States() = %v", r.States())
	}
}
