package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/internal/errs"
	"github.com/yeisme/photovault/pkg/internal/model"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[model.PhotoStatus][]model.PhotoStatus{
		model.StatusPending:    {model.StatusUploading, model.StatusFailed},
		model.StatusUploading:  {model.StatusUploaded, model.StatusFailed},
		model.StatusUploaded:   {model.StatusProcessing, model.StatusFailed},
		model.StatusProcessing: {model.StatusCompleted, model.StatusFailed, model.StatusRetrying},
		model.StatusRetrying:   {model.StatusProcessing, model.StatusFailed},
		model.StatusFailed:     {model.StatusRetrying, model.StatusPending},
		model.StatusCompleted:  {},
	}

	for _, from := range model.AllStatuses() {
		for _, to := range model.AllStatuses() {
			want := false

			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			if got := model.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionTo_RejectsWithoutMutation(t *testing.T) {
	for _, from := range model.AllStatuses() {
		for _, to := range model.AllStatuses() {
			if model.CanTransition(from, to) {
				continue
			}

			p := &model.Photo{ID: 7, Status: from}

			err := p.TransitionTo(to, time.Now())

			var it *errs.InvalidTransition
			if !errors.As(err, &it) {
				t.Fatalf("%s -> %s: expected InvalidTransition, got %v", from, to, err)
			}

			if it.From != string(from) || it.To != string(to) {
				t.Errorf("error carries %s -> %s, want %s -> %s", it.From, it.To, from, to)
			}

			if p.Status != from || p.ProcessedAt != nil {
				t.Errorf("%s -> %s mutated photo: %+v", from, to, p)
			}
		}
	}
}

func TestTransitionTo_CompletedStampsProcessedAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &model.Photo{Status: model.StatusProcessing}

	if err := p.TransitionTo(model.StatusCompleted, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ProcessedAt == nil || !p.ProcessedAt.Equal(now) {
		t.Errorf("ProcessedAt = %v, want %v", p.ProcessedAt, now)
	}

	if !p.Status.Terminal() {
		t.Error("COMPLETED should be terminal")
	}
}

func TestUnknownStatusHasNoEdges(t *testing.T) {
	if model.CanTransition("ARCHIVED", model.StatusPending) {
		t.Error("unknown status must not transition")
	}

	if _, ok := model.ParseStatus("ARCHIVED"); ok {
		t.Error("ParseStatus accepted unknown status")
	}
}

func TestThumbnailKeyFor(t *testing.T) {
	if got := model.ThumbnailKeyFor("photos/u/1/abc.jpg", ""); got != "photos/u/1/abc_thumb.jpg" {
		t.Errorf("got %s", got)
	}

	if got := model.ThumbnailKeyFor("photos/u/1/abc.png", ".png"); got != "photos/u/1/abc_thumb.png" {
		t.Errorf("got %s", got)
	}
}
