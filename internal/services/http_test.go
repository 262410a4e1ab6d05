package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/tonearm/internal/cache"
	"github.com/desertthunder/tonearm/internal/shared"
)

// stubTransport returns a canned response or error for every request.
type stubTransport struct {
	resp *http.Response
	err  error
}

func newStubTransport(r *http.Response, err error) *stubTransport {
	return &stubTransport{resp: r, err: err}
}

func (s *stubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return s.resp, s.err
}

// failingBody fails every read.
type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("read failed") }
func (failingBody) Close() error             { return nil }

func TestRequester(t *testing.T) {
	ctx := context.Background()

	t.Run("caches by URL", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		r := NewRequester(RequesterOpts{Name: "test"})
		defer r.Close()

		var out struct {
			OK bool `json:"ok"`
		}
		for range 3 {
			if err := r.GetJSON(ctx, srv.URL+"/a", &out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if !out.OK {
			t.Error("expected decoded body")
		}
		if got := hits.Load(); got != 1 {
			t.Errorf("expected one request, got %d", got)
		}

		if err := r.GetJSON(ctx, srv.URL+"/a", &out, cache.ForceReload()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := hits.Load(); got != 2 {
			t.Errorf("ForceReload should hit the server, got %d requests", got)
		}
	})

	t.Run("404 is a cached null", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		r := NewRequester(RequesterOpts{Name: "test"})
		defer r.Close()

		for range 2 {
			if _, err := r.Get(ctx, srv.URL+"/missing"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		}
		if got := hits.Load(); got != 1 {
			t.Errorf("null should be cached, got %d requests", got)
		}
	})

	t.Run("error statuses", func(t *testing.T) {
		cases := []struct {
			status int
			want   error
		}{
			{http.StatusTooManyRequests, shared.ErrRateLimited},
			{http.StatusServiceUnavailable, shared.ErrServiceUnavailable},
			{http.StatusInternalServerError, shared.ErrAPIRequest},
		}
		for _, c := range cases {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				w.Write([]byte(`{"detail":"nope"}`))
			}))

			r := NewRequester(RequesterOpts{Name: "test"})
			_, err := r.Get(ctx, srv.URL)
			if !errors.Is(err, c.want) {
				t.Errorf("status %d: expected %v, got %v", c.status, c.want, err)
			}
			var fe *shared.FetchError
			if !errors.As(err, &fe) {
				t.Errorf("status %d: expected FetchError, got %T", c.status, err)
			}
			r.Close()
			srv.Close()
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := &http.Client{Transport: newStubTransport(nil, errors.New("connection failed"))}
		r := NewRequester(RequesterOpts{Name: "test", HTTPClient: client})
		defer r.Close()

		if _, err := r.Get(ctx, "http://example.invalid/x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("body read failure", func(t *testing.T) {
		client := &http.Client{Transport: newStubTransport(&http.Response{
			StatusCode: http.StatusOK,
			Body:       failingBody{},
			Header:     http.Header{},
		}, nil)}
		r := NewRequester(RequesterOpts{Name: "test", HTTPClient: client})
		defer r.Close()

		if _, err := r.Get(ctx, "http://example.invalid/x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("static headers are sent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "tonearm-test" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		h := http.Header{}
		h.Set("User-Agent", "tonearm-test")
		r := NewRequester(RequesterOpts{Name: "test", Header: h})
		defer r.Close()

		if _, err := r.Get(ctx, srv.URL); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
