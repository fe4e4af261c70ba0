// Package timing holds the small primitives shared by the step controllers:
// cancellable delays, the minimum display floor, the in-flight guard, and a
// controller lifetime that cancels pending delays on teardown.
package timing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Clock abstracts wall-clock reads and suspensions so controllers can be
// driven by virtual time in tests.
type Clock interface {
	Now() time.Time
	// Sleep suspends for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Sleep blocks for d. It returns ctx.Err() if ctx is cancelled first.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ManualClock is a virtual clock. Sleep returns immediately after moving Now
// forward by the requested duration.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	hook   func(d time.Duration)
}

// NewManualClock returns a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the virtual time forward without recording a sleep.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// OnSleep registers a hook run (outside the lock) before each Sleep returns.
func (c *ManualClock) OnSleep(fn func(d time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = fn
}

// Sleep records d and advances the virtual time.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Sleeps returns every duration passed to Sleep, in call order.
func (c *ManualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// EnsureMinimum suspends until at least min has elapsed since start.
// Nothing is slept when the floor is already satisfied.
func EnsureMinimum(ctx context.Context, clock Clock, start time.Time, min time.Duration) error {
	elapsed := clock.Now().Sub(start)
	if elapsed >= min {
		return ctx.Err()
	}
	return clock.Sleep(ctx, min-elapsed)
}

// Guard is an in-flight flag. The zero value is ready to use.
type Guard struct {
	busy atomic.Bool
}

// TryEnter claims the guard. It returns false if it is already held.
func (g *Guard) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave releases the guard.
func (g *Guard) Leave() {
	g.busy.Store(false)
}

// Busy reports whether the guard is held.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// Lifetime is the cancellation token of a controller instance.
type Lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLifetime returns a live Lifetime.
func NewLifetime() *Lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lifetime{ctx: ctx, cancel: cancel}
}

// Bind derives a context cancelled when either ctx or the lifetime ends.
// The returned stop func must be called to release resources.
func (l *Lifetime) Bind(ctx context.Context) (context.Context, func()) {
	bound, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(l.ctx, cancel)
	return bound, func() {
		stop()
		cancel()
	}
}

// Alive reports whether End has not been called.
func (l *Lifetime) Alive() bool {
	return l.ctx.Err() == nil
}

// Done is closed when the lifetime ends.
func (l *Lifetime) Done() <-chan struct{} {
	return l.ctx.Done()
}

// End cancels every context bound to the lifetime. Safe to call twice.
func (l *Lifetime) End() {
	l.cancel()
}
