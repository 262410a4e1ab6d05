// package services defines the provider repositories the reconciliation engine talks to
//
// Spotify, MusicBrainz, YouTube Music (via proxy), local files
package services

import (
	"context"
	"strings"

	"github.com/desertthunder/tonearm/internal/models"
)

// SearchParams describes what a provider search looks for. Query is used verbatim when set.
type SearchParams struct {
	Query  string
	Title  string
	Artist string
	Album  string
	Limit  int
}

// Text returns the free-text form of the search.
func (p SearchParams) Text() string {
	if p.Query != "" {
		return p.Query
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Artist, p.Album, p.Title} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (p SearchParams) limit(def int) int {
	if p.Limit <= 0 {
		return def
	}
	return p.Limit
}

// AlbumSearchParams builds a search for combo's album.
func AlbumSearchParams(combo models.AlbumCombo) SearchParams {
	return SearchParams{Album: combo.Album.Title, Artist: combo.ArtistString()}
}

// TrackSearchParams builds a search for combo's track.
func TrackSearchParams(combo models.TrackCombo) SearchParams {
	p := SearchParams{Title: combo.Track.Title, Artist: combo.ArtistString()}
	if combo.Album != nil {
		p.Album = combo.Album.Title
	}
	return p
}

// Provider is an external source of album and track candidates. All methods are safe for concurrent use.
type Provider interface {
	// Name identifies the provider.
	Name() models.Provider

	// SearchAlbums returns album candidates in the provider's relevance order.
	SearchAlbums(ctx context.Context, params SearchParams) ([]models.AlbumCandidate, error)

	// SearchTracks returns track candidates in the provider's relevance order.
	SearchTracks(ctx context.Context, params SearchParams) ([]models.TrackCandidate, error)

	// AlbumCombo fetches an album with its full track list. Fails with [shared.ErrNotFound] for unknown ids.
	AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error)
}

// Recommender is a provider that can recommend tracks from seeds.
type Recommender interface {
	Name() models.Provider

	// TrackRecommendations opens an unbounded stream of recommended tracks.
	TrackRecommendations(ctx context.Context, seeds models.RecommendationSeeds) *RecommendationStream
}

// Closer is implemented by providers that own a cache and a rate limiter.
type Closer interface {
	Close() error
}
