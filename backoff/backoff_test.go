package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/docsync/backoff"
	"github.com/xraph/docsync/syncjob"
)

func TestConstant(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want 5s", attempt, got)
		}
	}
}

func TestLinear(t *testing.T) {
	l := backoff.NewLinear(time.Second, 5*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{3, 3 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := l.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{30, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialWithJitter(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 10*time.Second)

	seen := make(map[time.Duration]bool)
	for range 100 {
		got := e.Delay(3)
		if got < 0 || got > 4*time.Second {
			t.Fatalf("Delay(3) = %v, want within [0, 4s]", got)
		}
		seen[got] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got %d distinct values", len(seen))
	}
}

func TestForPolicy(t *testing.T) {
	base := 2 * time.Second

	tests := []struct {
		policy  syncjob.BackoffPolicy
		attempt int
		want    time.Duration
	}{
		{syncjob.BackoffConstant, 3, 2 * time.Second},
		{syncjob.BackoffLinear, 3, 6 * time.Second},
		{syncjob.BackoffExponential, 3, 8 * time.Second},
		{"", 3, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			if got := backoff.ForPolicy(tt.policy, base).Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestForType(t *testing.T) {
	typ := syncjob.NewType("x")
	typ.RetryDelaySeconds = 0
	if got := backoff.ForType(typ).Delay(1); got != 0 {
		t.Errorf("zero retry delay gave %v", got)
	}
}
