// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/repositories"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/jmoiron/sqlx"
)

// Track is a [models.TrackCandidate] test double.
type Track struct {
	Prov  models.Provider
	ID    string
	Combo models.TrackCombo
}

func (t Track) Provider() models.Provider { return t.Prov }
func (t Track) CandidateID() string { return t.ID }
func (t Track) ToTrackCombo() models.TrackCombo { return t.Combo }

// NewTrack builds a candidate whose combo carries id as p's external id.
func NewTrack(p models.Provider, id, title, artist string, seconds int) Track {
	combo := models.TrackCombo{
		Track:   models.Track{Title: title, DurationMs: int64(seconds) * 1000},
		Artists: []models.ArtistCredit{{Name: artist}},
	}
	combo.Track.SetExternalID(p, id)
	if p == models.ProviderYouTube {
		combo.Track.URI = "https://music.youtube.com/watch?v=" + id
	}
	return Track{Prov: p, ID: id, Combo: combo}
}

// Album is a [models.AlbumCandidate] test double.
type Album struct {
	Prov  models.Provider
	ID    string
	Combo models.AlbumCombo
}

func (a Album) Provider() models.Provider { return a.Prov }
func (a Album) CandidateID() string { return a.ID }
func (a Album) ToAlbumCombo() models.AlbumCombo { return a.Combo }

// NewAlbum builds an album candidate with one track per title, positioned 1..n.
func NewAlbum(p models.Provider, id, title, artist string, tracks ...string) Album {
	combo := models.AlbumCombo{
		Album:   models.Album{Title: title},
		Artists: []models.ArtistCredit{{Name: artist}},
	}
	switch p {
	case models.ProviderSpotify:
		combo.Album.SpotifyID = id
	case models.ProviderMusicBrainz:
		combo.Album.MusicBrainzReleaseID = id
	case models.ProviderYouTube:
		combo.Album.YoutubePlaylistID = id
	}
	for i, t := range tracks {
		tc := NewTrack(p, fmt.Sprintf("%s-%d", id, i+1), t, artist, 180).Combo
		tc.Track.DiscNumber = 1
		tc.Track.AlbumPosition = i + 1
		combo.Tracks = append(combo.Tracks, tc)
	}
	return Album{Prov: p, ID: id, Combo: combo}
}

// MockProvider is a test double for [services.Provider] and [services.Recommender].
//
// Searches return every configured candidate; Recommend, when set, produces recommendation batches.
type MockProvider struct {
	ProviderName models.Provider
	Albums       []models.AlbumCandidate
	Tracks       []models.TrackCandidate
	Combos       map[string]models.AlbumCombo
	SearchErr    error
	ComboErr     error
	Recommend    func(seeds models.RecommendationSeeds, call int) ([]models.TrackCandidate, error)

	mu       sync.Mutex
	searches []services.SearchParams
	seeds    []models.RecommendationSeeds
	batches  int
}

func (m *MockProvider) Name() models.Provider {
	if m.ProviderName == "" {
		return models.ProviderSpotify
	}
	return m.ProviderName
}

func (m *MockProvider) SearchAlbums(ctx context.Context, params services.SearchParams) ([]models.AlbumCandidate, error) {
	m.record(params)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Albums, nil
}

func (m *MockProvider) SearchTracks(ctx context.Context, params services.SearchParams) ([]models.TrackCandidate, error) {
	m.record(params)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Tracks, nil
}

func (m *MockProvider) AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error) {
	if m.ComboErr != nil {
		return models.AlbumCombo{}, m.ComboErr
	}
	if combo, ok := m.Combos[id]; ok {
		return combo, nil
	}
	for _, a := range m.Albums {
		if a.CandidateID() == id {
			return a.ToAlbumCombo(), nil
		}
	}
	return models.AlbumCombo{}, fmt.Errorf("album %s: %w", id, shared.ErrNotFound)
}

func (m *MockProvider) TrackRecommendations(ctx context.Context, seeds models.RecommendationSeeds) *services.RecommendationStream {
	m.mu.Lock()
	m.seeds = append(m.seeds, seeds)
	m.mu.Unlock()

	if m.Recommend == nil {
		return services.ExhaustedStream()
	}
	return services.NewRecommendationStream(func(ctx context.Context) ([]models.TrackCandidate, error) {
		m.mu.Lock()
		call := m.batches
		m.batches++
		m.mu.Unlock()
		return m.Recommend(seeds, call)
	}, seeds.Tracks...)
}

func (m *MockProvider) record(params services.SearchParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, params)
}

// Searches returns the search params seen so far.
func (m *MockProvider) Searches() []services.SearchParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.SearchParams(nil), m.searches...)
}

// Seeds returns the seeds of every recommendation request so far.
func (m *MockProvider) Seeds() []models.RecommendationSeeds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RecommendationSeeds(nil), m.seeds...)
}

// NewTestDB creates an in-memory SQLite database with migrations applied, closed on cleanup.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewLibrary returns library and radio repositories over a fresh test database.
func NewLibrary(t *testing.T) (*repositories.LibraryRepository, *repositories.RadioRepository) {
	t.Helper()
	db := NewTestDB(t)
	return repositories.NewLibraryRepository(db, nil), repositories.NewRadioRepository(db)
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf(msg, args...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
