package services

import (
	"context"
	"errors"
	"sync"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

// BatchFunc fetches the next batch of recommendations.
type BatchFunc func(ctx context.Context) ([]models.TrackCandidate, error)

// RecommendationStream turns repeated batch requests into a stream of unique candidates.
// It is exhausted once a batch brings nothing new; after that Next always fails with [shared.ErrExhausted].
type RecommendationStream struct {
	fetch BatchFunc

	mu        sync.Mutex
	buf       []models.TrackCandidate
	seen      map[string]bool
	exhausted bool
}

// NewRecommendationStream wraps fetch. Candidates whose ids are in exclude are never returned.
func NewRecommendationStream(fetch BatchFunc, exclude ...string) *RecommendationStream {
	seen := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		seen[id] = true
	}
	return &RecommendationStream{fetch: fetch, seen: seen}
}

// ExhaustedStream returns a stream with nothing in it.
func ExhaustedStream() *RecommendationStream {
	return &RecommendationStream{exhausted: true, seen: map[string]bool{}}
}

// Exclude marks ids as already used.
func (s *RecommendationStream) Exclude(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.seen[id] = true
	}
}

// Next returns the next unseen candidate.
func (s *RecommendationStream) Next(ctx context.Context) (models.TrackCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 {
		if s.exhausted {
			return nil, shared.ErrExhausted
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := s.fetch(ctx)
		if errors.Is(err, shared.ErrNotFound) {
			s.exhausted = true
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, c := range batch {
			id := c.CandidateID()
			if id == "" || s.seen[id] {
				continue
			}
			s.seen[id] = true
			s.buf = append(s.buf, c)
		}
		if len(s.buf) == 0 {
			s.exhausted = true
		}
	}

	next := s.buf[0]
	s.buf = s.buf[1:]
	return next, nil
}

// albumTrackIDs lists the provider's track ids for each album, skipping albums it does not know.
func albumTrackIDs(ctx context.Context, p Provider, albums []string) ([]string, error) {
	var ids []string
	for _, albumID := range albums {
		combo, err := p.AlbumCombo(ctx, albumID)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, tc := range combo.Tracks {
			if id := tc.Track.ExternalID(p.Name()); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// appendSeeds adds ids to seeds until there are n of them.
func appendSeeds(seeds, ids []string, n int) []string {
	out := append([]string(nil), seeds...)
	for _, id := range ids {
		if len(out) >= n {
			break
		}
		out = append(out, id)
	}
	return out
}
