package ratelimit

import (
	"context"
	"time"
)

// Pacer defines the interface for the politeness delay
type Pacer interface {
	// Pause blocks for the configured delay or until ctx is done
	Pause(ctx context.Context) error
	// Delay returns the configured delay
	Delay() time.Duration
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// FixedDelay pauses for the same duration every time
type FixedDelay struct {
	delay time.Duration
	sleep SleepFunc
}

// NewFixedDelay creates a pacer that waits delay between requests.
// A zero delay never blocks.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay, sleep: Sleep}
}

// WithSleeper replaces the sleep implementation, used by tests
func (p *FixedDelay) WithSleeper(fn SleepFunc) *FixedDelay {
	p.sleep = fn
	return p
}

// Pause waits for the configured delay
func (p *FixedDelay) Pause(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.delay)
}

// Delay returns the configured delay
func (p *FixedDelay) Delay() time.Duration {
	return p.delay
}

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Recorder is a SleepFunc that records requested pauses without blocking.
type Recorder struct {
	Pauses []time.Duration
}

// Sleep records d and returns immediately unless ctx is already done
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.Pauses = append(r.Pauses, d)
	return nil
}
