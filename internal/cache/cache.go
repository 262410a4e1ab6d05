package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/shared"
)

// DefaultRetention applies when [Options.Retention] is zero.
const DefaultRetention = 20 * time.Second

// FetchFunc loads the value for key. Returning (nil, nil) caches a null value.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (*V, error)

// Options configures a [Cache].
type Options struct {
	Name      string
	Retention time.Duration
	Logger    *log.Logger
}

// GetOption modifies a single read.
type GetOption func(*getOptions)

type getOptions struct {
	forceReload bool
	retryOnNull bool
}

// ForceReload bypasses a fresh hit and runs the fetch again.
func ForceReload() GetOption { return func(o *getOptions) { o.forceReload = true } }

// RetryOnNull runs the fetch again when the cached value is null.
func RetryOnNull() GetOption { return func(o *getOptions) { o.retryOnNull = true } }

type entry[V any] struct {
	value *V
	at    time.Time
}

// keyLock serializes fetches for one key. seq counts completed fetches so a waiter can tell
// whether a fetch finished between its arrival and its turn.
type keyLock[V any] struct {
	sem     chan struct{}
	refs    int
	seq     uint64
	lastVal *V
	lastErr error
}

// Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	fetch     FetchFunc[K, V]
	retention time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	entries map[K]entry[V]
	locks   map[K]*keyLock[V]
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a cache around fetch and starts its sweep.
func New[K comparable, V any](fetch FetchFunc[K, V], opts Options) *Cache[K, V] {
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	name := opts.Name
	if name == "" {
		name = "cache"
	}

	c := &Cache[K, V]{
		fetch:     fetch,
		retention: retention,
		logger:    shared.WithLogger(opts.Logger, "component", "cache", "cache", name),
		entries:   make(map[K]entry[V]),
		locks:     make(map[K]*keyLock[V]),
		done:      make(chan struct{}),
	}

	c.wg.Add(1)
	go c.sweepLoop()
	return c
}

// Get returns the value for key. It fails with a [*shared.FetchError] when the fetch fails or the value is null.
// Cancellation is returned unwrapped.
func (c *Cache[K, V]) Get(ctx context.Context, key K, opts ...GetOption) (V, error) {
	var zero V

	v, err := c.load(ctx, key, opts)
	if err != nil {
		if shared.IsCancellation(err) {
			return zero, err
		}
		return zero, &shared.FetchError{Key: fmt.Sprint(key), Err: err}
	}
	if v == nil {
		return zero, &shared.FetchError{Key: fmt.Sprint(key), Err: shared.ErrNotFound}
	}
	return *v, nil
}

// GetOrNull returns the value for key or nil. Fetch failures are logged and reported as nil;
// only cancellation is returned as an error.
func (c *Cache[K, V]) GetOrNull(ctx context.Context, key K, opts ...GetOption) (*V, error) {
	v, err := c.load(ctx, key, opts)
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, err
		}
		c.logger.Warn("fetch failed", "key", key, "error", err)
		return nil, nil
	}
	return v, nil
}

// Update stores value for key as if it had just been fetched.
func (c *Cache[K, V]) Update(key K, value *V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, at: time.Now()}
}

// Remove drops the entry for key, if any.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep. Reads after Close fail with [shared.ErrCacheClosed].
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

func (c *Cache[K, V]) load(ctx context.Context, key K, opts []GetOption) (*V, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	l, seen, err := c.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer c.release(key, l, true)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, shared.ErrCacheClosed
	}
	if l.seq != seen && !shared.IsCancellation(l.lastErr) {
		v, err := l.lastVal, l.lastErr
		c.mu.Unlock()
		return v, err
	}
	e, ok := c.entries[key]
	fresh := ok && time.Since(e.at) <= c.retention
	c.mu.Unlock()

	if fresh && !o.forceReload && (e.value != nil || !o.retryOnNull) {
		return e.value, nil
	}

	v, err := c.fetch(ctx, key)

	c.mu.Lock()
	l.seq++
	l.lastVal, l.lastErr = v, err
	if err == nil && !c.closed {
		c.entries[key] = entry[V]{value: v, at: time.Now()}
	}
	c.mu.Unlock()

	return v, err
}

// acquire takes the per-key lock, returning the fetch sequence observed on arrival.
func (c *Cache[K, V]) acquire(ctx context.Context, key K) (*keyLock[V], uint64, error) {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock[V]{sem: make(chan struct{}, 1)}
		c.locks[key] = l
	}
	l.refs++
	seen := l.seq
	c.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return l, seen, nil
	case <-ctx.Done():
		c.release(key, l, false)
		return nil, 0, ctx.Err()
	}
}

func (c *Cache[K, V]) release(key K, l *keyLock[V], held bool) {
	if held {
		<-l.sem
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
}

func (c *Cache[K, V]) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.retention)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				c.logger.Debug("evicted stale entries", "count", n)
			}
		}
	}
}

// sweep evicts entries older than the retention and returns how many were removed.
func (c *Cache[K, V]) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for k, e := range c.entries {
		if now.Sub(e.at) > c.retention {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}
