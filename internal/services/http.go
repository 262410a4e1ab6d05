package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/cache"
	"github.com/desertthunder/tonearm/internal/ratelimit"
	"github.com/desertthunder/tonearm/internal/shared"
)

const defaultRequestTimeout = 15 * time.Second

// RequesterOpts configures a [Requester].
type RequesterOpts struct {
	Name       string
	HTTPClient *http.Client
	Throttle   ratelimit.Throttle
	Retention  time.Duration
	Header     http.Header
	Logger     *log.Logger
}

// Requester performs GET requests for one provider. Each URL is a cache key; a miss submits exactly one
// job to the provider's rate limiter. 404s are cached as null values.
type Requester struct {
	client  *http.Client
	header  http.Header
	limiter *ratelimit.Limiter
	cache   *cache.Cache[string, ratelimit.Response]
	logger  *log.Logger
}

// NewRequester creates the cache and the limiter for a provider.
func NewRequester(opts RequesterOpts) *Requester {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	r := &Requester{
		client: client,
		header: opts.Header,
		logger: shared.WithLogger(opts.Logger, "component", "requester", "provider", opts.Name),
	}
	r.limiter = ratelimit.New(ratelimit.Options{Name: opts.Name, Throttle: opts.Throttle, Logger: opts.Logger})
	r.cache = cache.New(r.fetch, cache.Options{Name: opts.Name, Retention: opts.Retention, Logger: opts.Logger})
	return r
}

// Get returns the response for rawURL. A 404 fails with [shared.ErrNotFound].
func (r *Requester) Get(ctx context.Context, rawURL string, opts ...cache.GetOption) (*ratelimit.Response, error) {
	resp, err := r.cache.Get(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJSON decodes the response for rawURL into dst.
func (r *Requester) GetJSON(ctx context.Context, rawURL string, dst any, opts ...cache.GetOption) error {
	resp, err := r.Get(ctx, rawURL, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Close stops the cache sweep and the limiter.
func (r *Requester) Close() error {
	r.cache.Close()
	return r.limiter.Close()
}

func (r *Requester) fetch(ctx context.Context, rawURL string) (*ratelimit.Response, error) {
	resp, err := r.limiter.RunJob(ctx, ratelimit.Job{
		Key: rawURL,
		Do:  func(ctx context.Context) (*ratelimit.Response, error) { return r.do(ctx, rawURL) },
	})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		r.logger.Debug("not found", "url", rawURL)
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", shared.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errorDetail(resp.Body))
	}
	return resp, nil
}

func (r *Requester) do(ctx context.Context, rawURL string) (*ratelimit.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if shared.IsCancellation(ctx.Err()) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	return &ratelimit.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// errorDetail extracts a short message from common JSON error shapes.
func errorDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Error  any    `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Detail != "" {
			return e.Detail
		}
		switch v := e.Error.(type) {
		case string:
			return v
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				return msg
			}
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
