package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedDelay(t *testing.T) {
	rec := &Recorder{}
	p := NewFixedDelay(2 * time.Second).WithSleeper(rec.Sleep)

	for i := 0; i < 3; i++ {
		if err := p.Pause(context.Background()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if len(rec.Pauses) != 3 {
		t.Fatalf("Expected 3 pauses, got %d", len(rec.Pauses))
	}
	for _, d := range rec.Pauses {
		if d != 2*time.Second {
			t.Errorf("Expected 2s pause, got %v", d)
		}
	}
	if p.Delay() != 2*time.Second {
		t.Errorf("Expected delay 2s, got %v", p.Delay())
	}
}

func TestZeroDelayNeverSleeps(t *testing.T) {
	rec := &Recorder{}
	p := NewFixedDelay(0).WithSleeper(rec.Sleep)

	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rec.Pauses) != 0 {
		t.Error("Expected zero delay not to sleep")
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected cancelled sleep to return promptly")
	}
}

func TestSleepWaits(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("Expected Sleep to block for the requested duration")
	}
}
