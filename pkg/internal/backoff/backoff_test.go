package backoff_test

import (
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/internal/backoff"
)

func TestPolicy_DelayDoubles(t *testing.T) {
	p := backoff.New(time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestPolicy_DelayClampsAttempt(t *testing.T) {
	p := backoff.New(time.Second)

	if got := p.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want 1s", got)
	}

	if got := p.Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %v, want 1s", got)
	}
}

func TestPolicy_DelayMax(t *testing.T) {
	p := backoff.Policy{Base: time.Second, Max: 3 * time.Second}

	if got := p.Delay(3); got != 3*time.Second {
		t.Errorf("Delay(3) = %v, want capped 3s", got)
	}
}

func TestPolicy_DelayStrictlyIncreasing(t *testing.T) {
	p := backoff.New(time.Millisecond)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := p.Delay(attempt)
		if d <= prev {
			t.Fatalf("Delay(%d) = %v not greater than previous %v", attempt, d, prev)
		}

		prev = d
	}
}

func TestSequence(t *testing.T) {
	s := backoff.NewSequence(backoff.New(10 * time.Millisecond))

	if got := s.NextBackOff(); got != 10*time.Millisecond {
		t.Errorf("first = %v", got)
	}

	if got := s.NextBackOff(); got != 20*time.Millisecond {
		t.Errorf("second = %v", got)
	}

	s.Reset()

	if got := s.NextBackOff(); got != 10*time.Millisecond {
		t.Errorf("after reset = %v", got)
	}
}
