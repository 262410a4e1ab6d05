package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/matcher"
	"github.com/desertthunder/tonearm/internal/merge"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
)

const (
	DefaultMaxAlbumDistance = 0.3
	DefaultMaxTrackDistance = 0.5
)

// Library is the persistence the engine reads from and writes to.
// [repositories.LibraryRepository] implements it.
type Library interface {
	SaveAlbumCombo(ctx context.Context, combo *models.AlbumCombo) error
	SaveTrackCombo(ctx context.Context, combo *models.TrackCombo) error
	AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error)
	AlbumByExternalID(ctx context.Context, provider models.Provider, id string) (models.Album, error)
	TrackByExternalID(ctx context.Context, provider models.Provider, id string) (models.TrackCombo, error)
	SetTrackExternalID(ctx context.Context, trackID string, provider models.Provider, id string) error
}

// MergeOptions selects the strategies used when a match is merged into a library album.
type MergeOptions struct {
	Lists        models.ListMergeStrategy  // artist credits and tags
	Tracks       models.TrackMergeStrategy // tracks present on one side only
	TrackArtists models.ListMergeStrategy  // per-track artist credits
}

// DefaultMergeOptions keeps the library's own track list and unions everything else.
var DefaultMergeOptions = MergeOptions{
	Lists:        models.ListMerge,
	Tracks:       models.KeepSelf,
	TrackArtists: models.ListMerge,
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Library Library
	// Playable resolves tracks without a playable URI. Usually the YouTube provider.
	Playable         services.Provider
	MaxAlbumDistance float64
	MaxTrackDistance float64
	Matching         matcher.Options
	Logger           *log.Logger
}

// Engine reconciles library records with provider data.
type Engine struct {
	library          Library
	playable         services.Provider
	maxAlbumDistance float64
	maxTrackDistance float64
	matching         matcher.Options
	logger           *log.Logger
}

// NewEngine creates a new Engine. Zero distances fall back to the defaults.
func NewEngine(opts EngineOpts) *Engine {
	if opts.MaxAlbumDistance <= 0 {
		opts.MaxAlbumDistance = DefaultMaxAlbumDistance
	}
	if opts.MaxTrackDistance <= 0 {
		opts.MaxTrackDistance = DefaultMaxTrackDistance
	}
	if opts.Matching == (matcher.Options{}) {
		opts.Matching = matcher.DefaultOptions
	}
	return &Engine{
		library:          opts.Library,
		playable:         opts.Playable,
		maxAlbumDistance: opts.MaxAlbumDistance,
		maxTrackDistance: opts.MaxTrackDistance,
		matching:         opts.Matching,
		logger:           shared.WithLogger(opts.Logger, "component", "engine"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// MatchAlbumWithTracks finds the closest album on provider p and merges it with its full track list into combo.
// Provider failures are logged and reported as [shared.ErrNoMatch]; cancellation is returned as-is.
func (e *Engine) MatchAlbumWithTracks(ctx context.Context, p services.Provider, combo models.AlbumCombo, maxDistance float64, opts MergeOptions) (models.AlbumCombo, error) {
	if maxDistance <= 0 {
		maxDistance = e.maxAlbumDistance
	}
	logger := e.logger.With("provider", p.Name(), "album", combo.Album.Title)

	candidates, err := p.SearchAlbums(ctx, services.AlbumSearchParams(combo))
	if err != nil {
		if shared.IsCancellation(err) {
			return combo, err
		}
		logger.Warn("album search failed", "err", err)
		return combo, fmt.Errorf("%w: %s: %v", shared.ErrNoMatch, combo.Album.Title, err)
	}

	best, ok := matcher.BestAlbum(combo, candidates, maxDistance)
	if !ok {
		logger.Debug("no album within distance", "candidates", len(candidates), "max", maxDistance)
		return combo, fmt.Errorf("%w: %s", shared.ErrNoMatch, combo.Album.Title)
	}
	logger.Debug("matched album", "id", best.Candidate.CandidateID(), "distance", best.Distance)

	other, err := p.AlbumCombo(ctx, best.Candidate.CandidateID())
	if err != nil {
		if shared.IsCancellation(err) {
			return combo, err
		}
		logger.Warn("album lookup failed, using search result", "id", best.Candidate.CandidateID(), "err", err)
		other = best.Candidate.ToAlbumCombo()
	}

	return merge.NewBuilder(combo).
		MergeCombo(other, opts.Lists, opts.Tracks, opts.TrackArtists).
		Build()
}

// MatchLibraryAlbum loads a library album, matches it on p and saves the merged result.
func (e *Engine) MatchLibraryAlbum(ctx context.Context, p services.Provider, albumID string, opts MergeOptions) (models.AlbumCombo, error) {
	combo, err := e.library.AlbumCombo(ctx, albumID)
	if err != nil {
		return combo, err
	}

	merged, err := e.MatchAlbumWithTracks(ctx, p, combo, e.maxAlbumDistance, opts)
	if err != nil {
		return combo, err
	}

	if err := e.library.SaveAlbumCombo(ctx, &merged); err != nil {
		return combo, fmt.Errorf("failed to save merged album: %w", err)
	}
	return merged, nil
}

// ImportAlbum adds combo to the library. All of its tracks are flagged as in the library.
func (e *Engine) ImportAlbum(ctx context.Context, combo models.AlbumCombo) (models.AlbumCombo, error) {
	imported, err := merge.NewBuilder(combo).SetIsInLibrary(true).Build()
	if err != nil {
		return combo, err
	}
	if err := e.library.SaveAlbumCombo(ctx, &imported); err != nil {
		return combo, fmt.Errorf("failed to import album: %w", err)
	}
	e.logger.Info("imported album", "title", imported.Album.Title, "tracks", imported.TrackCount())
	return imported, nil
}

// ImportTrack adds a standalone track to the library.
func (e *Engine) ImportTrack(ctx context.Context, combo models.TrackCombo) (models.TrackCombo, error) {
	combo.Track.IsInLibrary = true
	if err := e.library.SaveTrackCombo(ctx, &combo); err != nil {
		return combo, fmt.Errorf("failed to import track: %w", err)
	}
	return combo, nil
}

// ImportResult summarizes a local file import.
type ImportResult struct {
	Albums []models.AlbumCombo
	Tracks []models.TrackCombo
	Failed []error
}

// ImportLocalFiles groups files into albums and standalone tracks and imports them.
func (e *Engine) ImportLocalFiles(ctx context.Context, progress chan<- ProgressUpdate, files []services.LocalFile) (*ImportResult, error) {
	albums, loose := services.GroupLocalFiles(files)
	total := len(albums) + len(loose)
	result := &ImportResult{}

	step := 0
	for _, combo := range albums {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		step++
		imported, err := e.ImportAlbum(ctx, combo)
		if err != nil {
			result.Failed = append(result.Failed, err)
			e.sendProgress(progress, importFailedUpdate(step, total, combo.Album.Title, err))
			continue
		}
		result.Albums = append(result.Albums, imported)
		e.sendProgress(progress, importedUpdate(step, total, imported.Album.Title))
	}

	for _, tc := range loose {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		step++
		imported, err := e.ImportTrack(ctx, tc)
		if err != nil {
			result.Failed = append(result.Failed, err)
			e.sendProgress(progress, importFailedUpdate(step, total, tc.Track.Title, err))
			continue
		}
		result.Tracks = append(result.Tracks, imported)
		e.sendProgress(progress, importedUpdate(step, total, imported.Track.Title))
	}
	return result, nil
}

// MatchTrack returns the closest track candidate on p.
func (e *Engine) MatchTrack(ctx context.Context, p services.Provider, combo models.TrackCombo) (models.MatchResult[models.TrackCandidate], error) {
	var none models.MatchResult[models.TrackCandidate]

	candidates, err := p.SearchTracks(ctx, services.TrackSearchParams(combo))
	if err != nil {
		if shared.IsCancellation(err) {
			return none, err
		}
		e.logger.Warn("track search failed", "provider", p.Name(), "track", combo.Track.Title, "err", err)
		return none, fmt.Errorf("%w: %s: %v", shared.ErrNoMatch, combo.Track.Title, err)
	}

	best, ok := matcher.BestTrack(combo, candidates, e.maxTrackDistance, e.matching)
	if !ok {
		return none, fmt.Errorf("%w: %s", shared.ErrNoMatch, combo.Track.Title)
	}
	return best, nil
}

// EnsureProviderTrackID returns the track's id on p, matching it and persisting the id when unknown.
func (e *Engine) EnsureProviderTrackID(ctx context.Context, p services.Provider, combo models.TrackCombo) (string, error) {
	if id := combo.Track.ExternalID(p.Name()); id != "" {
		return id, nil
	}

	best, err := e.MatchTrack(ctx, p, combo)
	if err != nil {
		return "", err
	}

	id := best.Candidate.CandidateID()
	if combo.Track.ID != "" {
		if err := e.library.SetTrackExternalID(ctx, combo.Track.ID, p.Name(), id); err != nil {
			return "", err
		}
	}
	e.logger.Debug("discovered provider id", "provider", p.Name(), "track", combo.Track.Title, "id", id)
	return id, nil
}

// ResolvePlayable turns a candidate into a playable library track. Known tracks are reused; unknown ones
// are matched against the playable provider when needed and saved outside the library.
// Fails with [shared.ErrNoMatch] when nothing playable is found.
func (e *Engine) ResolvePlayable(ctx context.Context, candidate models.TrackCandidate) (models.TrackCombo, error) {
	combo := candidate.ToTrackCombo()

	known, err := e.library.TrackByExternalID(ctx, candidate.Provider(), candidate.CandidateID())
	switch {
	case err == nil:
		if known.Track.IsPlayable() {
			return known, nil
		}
		combo = known
	case !errors.Is(err, shared.ErrNotFound):
		return combo, err
	}

	if !combo.Track.IsPlayable() {
		if e.playable == nil {
			return combo, fmt.Errorf("%w: %s is not playable", shared.ErrNoMatch, combo.Track.Title)
		}
		best, err := e.MatchTrack(ctx, e.playable, combo)
		if err != nil {
			return combo, err
		}
		match := best.Candidate.ToTrackCombo()
		combo.Track.SetExternalID(e.playable.Name(), best.Candidate.CandidateID())
		if combo.Track.URI == "" {
			combo.Track.URI = match.Track.URI
		}
		if combo.Track.DurationMs == 0 {
			combo.Track.DurationMs = match.Track.DurationMs
		}
	}

	if combo.Album != nil {
		if album, err := e.library.AlbumByExternalID(ctx, candidate.Provider(), combo.Album.ExternalID(candidate.Provider())); err == nil {
			combo.Album = &album
		} else if shared.IsCancellation(err) {
			return combo, err
		}
	}

	if err := e.library.SaveTrackCombo(ctx, &combo); err != nil {
		return combo, fmt.Errorf("failed to save resolved track: %w", err)
	}
	return combo, nil
}
