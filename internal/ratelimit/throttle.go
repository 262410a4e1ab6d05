package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBackoff is used when a 429/503 carries no usable Retry-After.
const DefaultBackoff = 2 * time.Second

// backoff tracks the earliest time the provider will accept another request after asking us to slow down.
type backoff struct {
	until time.Time
}

func (b *backoff) observe(resp *Response, finishedAt time.Time) {
	if !resp.Throttled() {
		return
	}
	d := RetryAfter(resp.Header, finishedAt)
	if d <= 0 {
		d = DefaultBackoff
	}
	if next := finishedAt.Add(d); next.After(b.until) {
		b.until = next
	}
}

func (b *backoff) wait(ctx context.Context) error {
	return sleepUntil(ctx, b.until)
}

// MinInterval enforces a minimum gap between the end of one request and the start of the next.
type MinInterval struct {
	Interval  time.Duration
	notBefore time.Time
	backoff
}

// NewMinInterval creates a [MinInterval] throttle.
func NewMinInterval(d time.Duration) *MinInterval {
	return &MinInterval{Interval: d}
}

func (m *MinInterval) WaitBeforeUnlocking(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	return sleepUntil(ctx, m.notBefore)
}

func (m *MinInterval) OnJobFinished(_ Job, resp *Response, _ error, finishedAt time.Time) {
	m.notBefore = finishedAt.Add(m.Interval)
	m.observe(resp, finishedAt)
}

// Window allows at most MaxRequests requests in any rolling window.
type Window struct {
	MaxRequests int
	Size        time.Duration

	mu      sync.Mutex
	history []time.Time
	backoff
}

// NewWindow creates a [Window] throttle.
func NewWindow(maxRequests int, size time.Duration) *Window {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &Window{MaxRequests: maxRequests, Size: size}
}

func (w *Window) WaitBeforeUnlocking(ctx context.Context) error {
	if err := w.wait(ctx); err != nil {
		return err
	}
	for {
		w.mu.Lock()
		w.prune(time.Now())
		if len(w.history) < w.MaxRequests {
			w.mu.Unlock()
			return nil
		}
		oldest := w.history[0]
		w.mu.Unlock()

		if err := sleepUntil(ctx, oldest.Add(w.Size)); err != nil {
			return err
		}
	}
}

func (w *Window) OnJobFinished(_ Job, resp *Response, _ error, finishedAt time.Time) {
	w.mu.Lock()
	w.history = append(w.history, finishedAt)
	w.mu.Unlock()
	w.observe(resp, finishedAt)
}

// InWindow returns the number of requests recorded in the current window. It is safe to call
// while the limiter runs and leaves the history alone.
func (w *Window) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	n := 0
	for _, t := range w.history {
		if now.Sub(t) < w.Size {
			n++
		}
	}
	return n
}

// prune drops requests that left the window. w.mu must be held.
func (w *Window) prune(now time.Time) {
	i := 0
	for i < len(w.history) && now.Sub(w.history[i]) >= w.Size {
		i++
	}
	w.history = w.history[i:]
}

// TokenBucket paces requests with a [rate.Limiter].
type TokenBucket struct {
	limiter *rate.Limiter
	backoff
}

// NewTokenBucket creates a [TokenBucket] throttle allowing rps requests per second with the given burst.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *TokenBucket) WaitBeforeUnlocking(ctx context.Context) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.limiter.Wait(ctx)
}

func (t *TokenBucket) OnJobFinished(_ Job, resp *Response, _ error, finishedAt time.Time) {
	t.observe(resp, finishedAt)
}

// RetryAfter parses a Retry-After header (delta seconds or an HTTP date) relative to now.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		return t.Sub(now)
	}
	return 0
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
