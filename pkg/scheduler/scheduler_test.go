package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	t.Cleanup(func() { _ = s.Shutdown() })

	return s
}

func TestWithSeconds(t *testing.T) {
	if !scheduler.WithSeconds("*/5 * * * * *") {
		t.Error("6-field expression not detected")
	}

	if scheduler.WithSeconds("*/10 * * * *") {
		t.Error("5-field expression reported as seconds")
	}
}

func TestAddCron_RejectsDuplicateAndInvalid(t *testing.T) {
	s := newScheduler(t)
	noop := func(context.Context) error { return nil }

	if err := s.AddCron(context.Background(), "a", "0 0 * * *", noop); err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	if err := s.AddCron(context.Background(), "a", "0 0 * * *", noop); err == nil {
		t.Error("duplicate name accepted")
	}

	if err := s.AddCron(context.Background(), "b", "not a cron", noop); err == nil {
		t.Error("invalid expression accepted")
	}

	if got := len(s.GetJobInfos()); got != 1 {
		t.Errorf("jobs = %d, want 1", got)
	}
}

func TestRunNow_RecordsOutcome(t *testing.T) {
	s := newScheduler(t)
	s.Start()

	var runs atomic.Int32

	fail := errors.New("boom")

	_ = s.AddCron(context.Background(), "ok", "0 0 1 1 *", func(context.Context) error {
		runs.Add(1)

		return nil
	})
	_ = s.AddCron(context.Background(), "bad", "0 0 1 1 *", func(context.Context) error { return fail })

	if err := s.RunNow("ok"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	if err := s.RunNow("bad"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ok, _ := s.GetJobInfoByName("ok")
		bad, _ := s.GetJobInfoByName("bad")

		if !ok.LastSuccess.IsZero() && bad.Status == scheduler.StatusError {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	ok, _ := s.GetJobInfoByName("ok")
	if runs.Load() != 1 || ok.LastSuccess.IsZero() {
		t.Errorf("ok job runs=%d last_success=%v", runs.Load(), ok.LastSuccess)
	}

	bad, _ := s.GetJobInfoByName("bad")
	if bad.Status != scheduler.StatusError || bad.Error != "boom" {
		t.Errorf("bad job status=%s error=%q", bad.Status, bad.Error)
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow on unknown job succeeded")
	}
}

func TestRemoveJobByName(t *testing.T) {
	s := newScheduler(t)

	_ = s.AddCron(context.Background(), "gone", "0 0 * * *", func(context.Context) error { return nil })

	if err := s.RemoveJobByName("gone"); err != nil {
		t.Fatalf("RemoveJobByName: %v", err)
	}

	if _, err := s.GetJobInfoByName("gone"); err == nil {
		t.Error("removed job still listed")
	}

	if err := s.RemoveJobByName("gone"); err == nil {
		t.Error("second removal succeeded")
	}
}
