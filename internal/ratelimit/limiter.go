// Package ratelimit bounds how many messages a user may send into a
// community within a fixed time window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key identifies one admission counter: one user posting into one
// community. Different users and different communities never share a
// counter.
type Key struct {
	UserID      uuid.UUID
	CommunityID uuid.UUID
}

func (k Key) String() string {
	return k.UserID.String() + ":" + k.CommunityID.String()
}

// Decision is the outcome of a single rate-limit check. When Allowed is
// false, RetryAfter tells the caller how many whole seconds remain
// until the window resets (always >= 1 on a denial).
type Decision struct {
	Allowed    bool
	RetryAfter int
}

// Limiter is the admission counter the message pipeline consults before
// authorizing a send. Implementations: Window (per-process, the
// default) and RedisLimiter (shared across instances).
//
// Check both tests AND consumes: an allowed call counts against the
// window. Callers must therefore only Check requests that have already
// passed authentication and shape validation.
type Limiter interface {
	Check(ctx context.Context, key Key) (Decision, error)
}

// counter is one fixed-window admission counter.
type counter struct {
	count         int
	windowResetAt time.Time
}

// Window is a fixed-window in-memory limiter.
//
// Fixed-window, not sliding or token-bucket: the counter resets at
// window boundaries, so a burst straddling a boundary can briefly see
// up to 2×max admissions. That imprecision is accepted.
//
// Counters live in a plain map guarded by a mutex. A background sweep
// removes counters whose window has already expired so the map doesn't
// grow with every user that ever posted. The sweep is owned by the
// component: Start launches it, Stop tears it down, and tests that
// never call Start get fully deterministic behavior.
type Window struct {
	mu       sync.Mutex
	counters map[Key]*counter
	max      int
	window   time.Duration

	sweepEvery time.Duration
	done       chan struct{}
	stopOnce   sync.Once

	// now is swappable in tests.
	now func() time.Time
}

// NewWindow creates a limiter allowing max admissions per key per
// window. Call Start to begin the background sweep.
func NewWindow(max int, window time.Duration) *Window {
	return &Window{
		counters:   make(map[Key]*counter),
		max:        max,
		window:     window,
		sweepEvery: 5 * time.Minute,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Check implements Limiter. It never returns an error; the signature
// carries one so the Redis-backed implementation can share it.
func (w *Window) Check(_ context.Context, key Key) (Decision, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	c, ok := w.counters[key]
	if !ok || !now.Before(c.windowResetAt) {
		// First request for this key, or the previous window has
		// expired: fresh counter, and this request is admission #1.
		w.counters[key] = &counter{
			count:         1,
			windowResetAt: now.Add(w.window),
		}
		return Decision{Allowed: true}, nil
	}

	if c.count < w.max {
		c.count++
		return Decision{Allowed: true}, nil
	}

	return Decision{Allowed: false, RetryAfter: retryAfter(c.windowResetAt.Sub(now))}, nil
}

// Start launches the periodic sweep that drops expired counters.
func (w *Window) Start() {
	go func() {
		ticker := time.NewTicker(w.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.sweep()
			case <-w.done:
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (w *Window) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Window) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for key, c := range w.counters {
		if !now.Before(c.windowResetAt) {
			delete(w.counters, key)
		}
	}
}

// size reports the number of live counters. Test hook.
func (w *Window) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.counters)
}

// retryAfter rounds the remaining window up to whole seconds, never
// advertising 0 on a denial.
func retryAfter(remaining time.Duration) int {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

var _ Limiter = (*Window)(nil)

// FormatKey renders a key for external stores, namespaced so the
// limiter's keys can't collide with anything else in a shared Redis.
func FormatKey(key Key) string {
	return fmt.Sprintf("ratelimit:msg:%s", key)
}
