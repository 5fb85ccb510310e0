package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
)

// GlobalKey is the bucket key used when no tool-specific override exists.
const GlobalKey = "global"

// Window expresses request allowances over two horizons. A zero field means
// that horizon is unconstrained; a fully zero Window disables limiting for
// the keys it governs.
type Window struct {
	// PerSecond allows this many requests per second (and bursts of the
	// same size).
	PerSecond float64 `yaml:"per_second"`
	// PerMinute allows this many requests per minute.
	PerMinute float64 `yaml:"per_minute"`
}

// Enabled reports whether the window constrains anything.
func (w Window) Enabled() bool { return w.PerSecond > 0 || w.PerMinute > 0 }

// resolve collapses the window pair into one effective (capacity, rate)
// token bucket configuration. Each horizon contributes a candidate pair
// (burst = allowance, rate = allowance/horizon) and the more restrictive
// value governs on both axes.
func (w Window) resolve() (capacity, rate float64) {
	capacity, rate = 0, 0
	if w.PerSecond > 0 {
		capacity, rate = w.PerSecond, w.PerSecond
	}
	if w.PerMinute > 0 {
		minuteCap := w.PerMinute
		minuteRate := w.PerMinute / 60.0
		if capacity == 0 || minuteCap < capacity {
			capacity = minuteCap
		}
		if rate == 0 || minuteRate < rate {
			rate = minuteRate
		}
	}
	return capacity, rate
}

// bucket holds the token state for one key. All fields are guarded by mu;
// buckets are never shared across keys.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

// acquire refills the bucket for the elapsed time, then either consumes one
// token (returning zero) or returns the exact duration until one accrues.
func (b *bucket) acquire(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}

	needed := 1 - b.tokens
	return time.Duration(needed / b.rate * float64(time.Second))
}

// refill adds elapsed*rate tokens capped at capacity (mu must be held).
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// available returns the current token count after refilling (mu must not be held).
func (b *bucket) available(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	return b.tokens
}

// Options configures a Limiter.
type Options struct {
	// Overrides maps tool names to dedicated windows. Keys without an
	// override share the global bucket.
	Overrides map[string]Window
	// Logger receives debug entries for waits. Defaults to NoOpLogger.
	Logger logging.Logger
	// Now supplies the clock, overridable for deterministic tests.
	Now func() time.Time
}

// Limiter manages one token bucket per key. The bucket map is guarded by a
// read/write mutex used only for lookup and lazy creation; token mutation is
// serialized per bucket so unrelated keys never block each other.
type Limiter struct {
	mu        sync.RWMutex
	buckets   map[string]*bucket
	global    Window
	overrides map[string]Window
	logger    logging.Logger
	now       func() time.Time
}

// New creates a Limiter with the given global window and optional overrides.
func New(global Window, optFns ...func(o *Options)) *Limiter {
	opts := Options{
		Overrides: map[string]Window{},
		Logger:    logging.NoOpLogger{},
		Now:       time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Limiter{
		buckets:   make(map[string]*bucket),
		global:    global,
		overrides: opts.Overrides,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Acquire attempts to consume one token for key. A zero return means the
// token was consumed; a positive return is the exact duration the caller
// must wait before retrying. Keys without a dedicated override draw from
// the shared global bucket; a disabled window never waits.
func (l *Limiter) Acquire(key string) time.Duration {
	key, window := l.effective(key)
	if !window.Enabled() {
		return 0
	}

	b := l.bucketFor(key, window)
	wait := b.acquire(l.now())
	if wait > 0 {
		l.logger.Debug("ratelimit.acquire.wait", "key", key, "wait_ms", wait.Milliseconds())
	}
	return wait
}

// Wait blocks until a token is acquired for key or ctx is cancelled. The
// wait is a timer-based suspension sized by Acquire, not a spin loop.
// Tokens consumed before cancellation are not refunded.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		wait := l.Acquire(key)
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens returns the currently available token count for key's bucket.
// Intended for introspection and tests.
func (l *Limiter) Tokens(key string) float64 {
	key, window := l.effective(key)
	if !window.Enabled() {
		return 0
	}
	return l.bucketFor(key, window).available(l.now())
}

// effective resolves key to the bucket key and window that govern it.
func (l *Limiter) effective(key string) (string, Window) {
	if w, ok := l.overrides[key]; ok {
		return key, w
	}
	return GlobalKey, l.global
}

// bucketFor returns or lazily creates the bucket for key.
func (l *Limiter) bucketFor(key string, window Window) *bucket {
	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()

	if exists {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists = l.buckets[key]; exists {
		return b
	}

	capacity, rate := window.resolve()
	b = &bucket{tokens: capacity, capacity: capacity, rate: rate, last: l.now()}
	l.buckets[key] = b
	return b
}
