package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/tonearm/internal/ratelimit"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
)

// BulkMatchOpts contains configuration for bulk album matching.
type BulkMatchOpts struct {
	NumWorkers int          // Concurrent workers (default: 3, max: 10)
	Merge      MergeOptions // Strategies for every merge
}

// AlbumMatchResult is the outcome for one album.
type AlbumMatchResult struct {
	AlbumID    string
	Title      string
	Matched    bool
	TrackCount int
	Error      error
}

// BulkMatchResult summarizes a bulk match.
type BulkMatchResult struct {
	Provider  string
	Total     int
	Matched   int
	Unmatched int
	Failed    int
	Results   []AlbumMatchResult
}

// BulkMatch matches many library albums against p with a worker pool.
//
// Provider requests are submitted at low priority so interactive requests on the same provider go first.
// An album without a match counts as unmatched; any other error counts as failed. Neither stops the run.
func (e *Engine) BulkMatch(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	p services.Provider,
	albumIDs []string,
	opts BulkMatchOpts,
) (*BulkMatchResult, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider not initialized", shared.ErrServiceUnavailable)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	result := &BulkMatchResult{
		Provider: string(p.Name()),
		Total:    len(albumIDs),
		Results:  make([]AlbumMatchResult, 0, len(albumIDs)),
	}

	ctx = ratelimit.WithPriority(ctx, ratelimit.Low)
	jobs := make(chan string)
	results := make(chan AlbumMatchResult, len(albumIDs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.matchWorker(ctx, &wg, p, jobs, results, opts.Merge)
	}

	go func() {
		defer close(jobs)
		e.sendProgress(prog, loadLibraryUpdate(len(albumIDs)))
		for _, id := range albumIDs {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Matched:
			result.Matched++
			e.sendProgress(prog, matchedAlbumUpdate(completed, len(albumIDs), res))
		case errors.Is(res.Error, shared.ErrNoMatch):
			result.Unmatched++
			e.sendProgress(prog, unmatchedAlbumUpdate(completed, len(albumIDs), res))
		default:
			result.Failed++
			e.sendProgress(prog, unmatchedAlbumUpdate(completed, len(albumIDs), res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// matchWorker matches albums from the jobs channel until it is closed.
func (e *Engine) matchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	p services.Provider,
	jobs <-chan string,
	results chan<- AlbumMatchResult,
	opts MergeOptions,
) {
	defer wg.Done()

	for id := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := AlbumMatchResult{AlbumID: id}
		merged, err := e.MatchLibraryAlbum(ctx, p, id, opts)
		res.Title = merged.Album.Title
		if err != nil {
			if shared.IsCancellation(err) {
				return
			}
			res.Error = err
		} else {
			res.Matched = true
			res.TrackCount = merged.TrackCount()
		}
		results <- res
	}
}
