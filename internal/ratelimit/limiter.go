package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/shared"
)

// Priority is binary: low-priority jobs run only when no normal job is waiting.
type Priority int

const (
	Normal Priority = iota
	Low
)

func (p Priority) String() string {
	if p == Low {
		return "low"
	}
	return "normal"
}

type priorityKey struct{}

// WithPriority returns a context whose jobs are submitted at p.
func WithPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFrom returns the priority carried by ctx, [Normal] by default.
func PriorityFrom(ctx context.Context) Priority {
	if p, ok := ctx.Value(priorityKey{}).(Priority); ok {
		return p
	}
	return Normal
}

// Response is the part of an HTTP response the limiter and throttles care about.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Throttled reports whether the provider asked us to slow down.
func (r *Response) Throttled() bool {
	return r != nil && (r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusServiceUnavailable)
}

// Job is one deferred request.
type Job struct {
	Key      string
	Priority Priority
	Do       func(ctx context.Context) (*Response, error)
}

// Result is delivered once per submitted job.
type Result struct {
	Response *Response
	Err      error
}

// Throttle is a provider's throttling policy. Both methods are only ever called from the limiter's worker goroutine.
type Throttle interface {
	// WaitBeforeUnlocking blocks until the next job may be dispatched.
	WaitBeforeUnlocking(ctx context.Context) error
	// OnJobFinished records the outcome of a dispatched job.
	OnJobFinished(job Job, resp *Response, err error, finishedAt time.Time)
}

// Options configures a [Limiter].
type Options struct {
	Name     string
	Throttle Throttle
	Logger   *log.Logger
}

type pending struct {
	job    Job
	ctx    context.Context
	result chan Result
}

// Limiter serializes jobs for one provider.
type Limiter struct {
	throttle Throttle
	logger   *log.Logger

	mu     sync.Mutex
	normal []*pending
	low    []*pending
	closed bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a limiter and starts its worker. A nil throttle dispatches jobs back to back.
func New(opts Options) *Limiter {
	throttle := opts.Throttle
	if throttle == nil {
		throttle = NewMinInterval(0)
	}
	ctx, cancel := context.WithCancel(context.Background())

	l := &Limiter{
		throttle: throttle,
		logger:   shared.WithLogger(opts.Logger, "component", "ratelimit", "provider", opts.Name),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// Submit enqueues job and returns a channel that receives its result.
// ctx is handed to the job; if it is cancelled while the job is still queued the job is skipped.
func (l *Limiter) Submit(ctx context.Context, job Job) <-chan Result {
	ch := make(chan Result, 1)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		ch <- Result{Err: shared.ErrLimiterClosed}
		return ch
	}
	p := &pending{job: job, ctx: ctx, result: ch}
	if job.Priority == Low {
		l.low = append(l.low, p)
	} else {
		l.normal = append(l.normal, p)
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return ch
}

// RunJob submits job and waits for its result. The job's priority defaults to the one carried by ctx.
func (l *Limiter) RunJob(ctx context.Context, job Job) (*Response, error) {
	if job.Priority == Normal {
		job.Priority = PriorityFrom(ctx)
	}

	select {
	case res := <-l.Submit(ctx, job):
		return res.Response, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.normal) + len(l.low)
}

// Close stops the worker. Queued jobs fail with [shared.ErrLimiterClosed]; a running job sees its
// own context and is allowed to finish.
func (l *Limiter) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	queued := append(l.normal, l.low...)
	l.normal, l.low = nil, nil
	l.mu.Unlock()

	for _, p := range queued {
		p.result <- Result{Err: shared.ErrLimiterClosed}
	}
	l.cancel()
	<-l.done
	return nil
}

func (l *Limiter) run() {
	defer close(l.done)

	for {
		if !l.waitForJob() {
			return
		}
		// Jobs whose caller gave up must not hold the queue behind a throttle wait.
		if l.dropCancelled() == 0 {
			continue
		}

		if err := l.throttle.WaitBeforeUnlocking(l.ctx); err != nil {
			return
		}

		p := l.dequeue()
		if p == nil {
			continue
		}

		resp, err := l.do(p)
		finishedAt := time.Now()
		l.throttle.OnJobFinished(p.job, resp, err, finishedAt)

		if resp.Throttled() {
			l.logger.Warn("provider requested back-off",
				"key", p.job.Key,
				"status", resp.StatusCode,
				"retry_after", resp.Header.Get("Retry-After"))
		}

		p.result <- Result{Response: resp, Err: err}
	}
}

// do runs the job. A panic fails the job instead of the worker.
func (l *Limiter) do(p *pending) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("job panicked", "key", p.job.Key, "panic", r)
			resp, err = nil, fmt.Errorf("%w: job %q panicked: %v", shared.ErrAPIRequest, p.job.Key, r)
		}
	}()
	return p.job.Do(p.ctx)
}

// dropCancelled fails every queued job whose context is done and returns how many remain.
func (l *Limiter) dropCancelled() int {
	l.mu.Lock()
	var dropped []*pending
	keep := func(queue []*pending) []*pending {
		out := queue[:0]
		for _, p := range queue {
			if p.ctx.Err() != nil {
				dropped = append(dropped, p)
				continue
			}
			out = append(out, p)
		}
		return out
	}
	l.normal, l.low = keep(l.normal), keep(l.low)
	remaining := len(l.normal) + len(l.low)
	l.mu.Unlock()

	for _, p := range dropped {
		l.logger.Debug("skipping cancelled job", "key", p.job.Key)
		p.result <- Result{Err: p.ctx.Err()}
	}
	return remaining
}

// waitForJob blocks until a job is queued. It returns false once the limiter is closed.
func (l *Limiter) waitForJob() bool {
	for {
		l.mu.Lock()
		closed := l.closed
		ready := len(l.normal)+len(l.low) > 0
		l.mu.Unlock()

		if closed {
			return false
		}
		if ready {
			return true
		}

		select {
		case <-l.wake:
		case <-l.ctx.Done():
			return false
		}
	}
}

// dequeue pops the next job to run. Jobs cancelled during the throttle wait are failed and skipped.
func (l *Limiter) dequeue() *pending {
	for {
		l.mu.Lock()
		var p *pending
		switch {
		case len(l.normal) > 0:
			p, l.normal = l.normal[0], l.normal[1:]
		case len(l.low) > 0:
			p, l.low = l.low[0], l.low[1:]
		}
		l.mu.Unlock()

		if p == nil {
			return nil
		}
		if err := p.ctx.Err(); err != nil {
			l.logger.Debug("skipping cancelled job", "key", p.job.Key)
			p.result <- Result{Err: err}
			continue
		}
		return p
	}
}
