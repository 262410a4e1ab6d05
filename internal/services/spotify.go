// Spotify Web API implementation of [Provider] and [Recommender]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/cache"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/ratelimit"
	"github.com/desertthunder/tonearm/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifySearchLimit          = 10
	spotifyRecommendationsLimit = 20
	spotifyMaxSeeds             = 5
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type spotifyExternalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track. Album is absent on tracks nested in an album response.
type SpotifyTrack struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artists     []SpotifyArtist    `json:"artists"`
	Album       *SpotifyAlbum      `json:"album,omitempty"`
	DiscNumber  int                `json:"disc_number"`
	TrackNumber int                `json:"track_number"`
	DurationMS  int64              `json:"duration_ms"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
	URI         string             `json:"uri"`
}

type spotifyAlbumTracks struct {
	Items []SpotifyTrack `json:"items"`
	Total int            `json:"total"`
	Next  *string        `json:"next"`
}

// SpotifyAlbum represents a Spotify album. Tracks is only populated by the album endpoint.
type SpotifyAlbum struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	AlbumType   string              `json:"album_type"`
	Artists     []SpotifyArtist     `json:"artists"`
	ReleaseDate string              `json:"release_date"`
	TotalTracks int                 `json:"total_tracks"`
	Images      []SpotifyImage      `json:"images"`
	Genres      []string            `json:"genres"`
	Tracks      *spotifyAlbumTracks `json:"tracks,omitempty"`
	URI         string              `json:"uri"`
}

func (a SpotifyAlbum) Provider() models.Provider { return models.ProviderSpotify }
func (a SpotifyAlbum) CandidateID() string       { return a.ID }

// ToAlbumCombo converts the album and any nested tracks.
func (a SpotifyAlbum) ToAlbumCombo() models.AlbumCombo {
	album := models.Album{
		ID:        a.ID,
		Title:     a.Name,
		Year:      releaseYear(a.ReleaseDate),
		AlbumType: a.AlbumType,
		ArtURL:    largestImage(a.Images),
		SpotifyID: a.ID,
	}
	combo := models.AlbumCombo{
		Album:   album,
		Artists: spotifyCredits(a.Artists, a.ID),
		Tags:    append([]string(nil), a.Genres...),
	}
	if a.Tracks != nil {
		for _, t := range a.Tracks.Items {
			tc := t.ToTrackCombo()
			tc.Track.AlbumID = a.ID
			tc.Album = &album
			if tc.Track.ImageURL == "" {
				tc.Track.ImageURL = album.ArtURL
			}
			combo.Tracks = append(combo.Tracks, tc)
		}
	}
	return combo
}

func (t SpotifyTrack) Provider() models.Provider { return models.ProviderSpotify }
func (t SpotifyTrack) CandidateID() string       { return t.ID }

// ToTrackCombo converts the track and its album, if present.
func (t SpotifyTrack) ToTrackCombo() models.TrackCombo {
	track := models.Track{
		ID:            t.ID,
		Title:         t.Name,
		DiscNumber:    t.DiscNumber,
		AlbumPosition: t.TrackNumber,
		DurationMs:    t.DurationMS,
		SpotifyID:     t.ID,
	}
	if t.ExternalIDs.ISRC != "" {
		track.Metadata = `{"isrc":"` + t.ExternalIDs.ISRC + `"}`
	}
	tc := models.TrackCombo{Track: track, Artists: spotifyCredits(t.Artists, t.ID)}
	if t.Album != nil {
		album := t.Album.ToAlbumCombo().Album
		tc.Album = &album
		tc.Track.AlbumID = album.ID
		tc.Track.ImageURL = album.ArtURL
	}
	return tc
}

func spotifyCredits(artists []SpotifyArtist, ownerID string) []models.ArtistCredit {
	credits := make([]models.ArtistCredit, 0, len(artists))
	for i, a := range artists {
		credits = append(credits, models.ArtistCredit{OwnerID: ownerID, Position: i, Name: a.Name, SpotifyID: a.ID})
	}
	return credits
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	// BaseURL and TokenURL default to the public endpoints.
	BaseURL  string
	TokenURL string
	// HTTPClient is used for token requests; API requests go through an [oauth2] client built on top of it.
	HTTPClient *http.Client
	Throttle   ratelimit.Throttle
	Retention  int
	Logger     *log.Logger
}

// SpotifyService is the streaming-metadata provider. It authenticates with the client credentials flow.
type SpotifyService struct {
	baseURL   string
	requester *Requester
	logger    *log.Logger
}

// NewSpotifyService creates a Spotify provider with its own cache and rate limiter.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	client := config.Client(ctx)
	client.Timeout = defaultRequestTimeout

	return &SpotifyService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		requester: NewRequester(RequesterOpts{
			Name:       models.ProviderSpotify.String(),
			HTTPClient: client,
			Throttle:   opts.Throttle,
			Retention:  secondsOrZero(opts.Retention),
			Logger:     opts.Logger,
		}),
		logger: shared.WithLogger(opts.Logger, "component", "spotify"),
	}, nil
}

func (s *SpotifyService) Name() models.Provider { return models.ProviderSpotify }

// Close releases the cache and rate limiter.
func (s *SpotifyService) Close() error { return s.requester.Close() }

// SearchAlbums calls GET /search?type=album.
func (s *SpotifyService) SearchAlbums(ctx context.Context, params SearchParams) ([]models.AlbumCandidate, error) {
	var response struct {
		Albums struct {
			Items []SpotifyAlbum `json:"items"`
		} `json:"albums"`
	}
	if err := s.search(ctx, "album", spotifyAlbumQuery(params), params.limit(spotifySearchLimit), &response); err != nil {
		return nil, err
	}

	candidates := make([]models.AlbumCandidate, 0, len(response.Albums.Items))
	for _, a := range response.Albums.Items {
		candidates = append(candidates, a)
	}
	return candidates, nil
}

// SearchTracks calls GET /search?type=track.
func (s *SpotifyService) SearchTracks(ctx context.Context, params SearchParams) ([]models.TrackCandidate, error) {
	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.search(ctx, "track", spotifyTrackQuery(params), params.limit(spotifySearchLimit), &response); err != nil {
		return nil, err
	}

	candidates := make([]models.TrackCandidate, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		candidates = append(candidates, t)
	}
	return candidates, nil
}

func (s *SpotifyService) search(ctx context.Context, kind, query string, limit int, dst any) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty search", shared.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", kind)
	q.Set("limit", strconv.Itoa(limit))
	return s.requester.GetJSON(ctx, s.baseURL+"/search?"+q.Encode(), dst)
}

// Album calls GET /albums/{id}.
func (s *SpotifyService) Album(ctx context.Context, albumID string) (*SpotifyAlbum, error) {
	var album SpotifyAlbum
	if err := s.requester.GetJSON(ctx, s.baseURL+"/albums/"+url.PathEscape(albumID), &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// AlbumCombo fetches an album with its tracks.
func (s *SpotifyService) AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error) {
	album, err := s.Album(ctx, id)
	if err != nil {
		return models.AlbumCombo{}, err
	}
	return album.ToAlbumCombo(), nil
}

// Recommendations calls GET /recommendations. At most five seeds are sent, tracks first.
func (s *SpotifyService) Recommendations(ctx context.Context, seeds models.RecommendationSeeds, limit int) ([]SpotifyTrack, error) {
	tracks, artists := capSeeds(seeds.Tracks, seeds.Artists, spotifyMaxSeeds)
	if len(tracks) == 0 && len(artists) == 0 {
		return nil, fmt.Errorf("%w: no track or artist seeds", shared.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if len(tracks) > 0 {
		q.Set("seed_tracks", strings.Join(tracks, ","))
	}
	if len(artists) > 0 {
		q.Set("seed_artists", strings.Join(artists, ","))
	}

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	// Each batch must hit the API again; identical seeds would otherwise be served from cache.
	if err := s.requester.GetJSON(ctx, s.baseURL+"/recommendations?"+q.Encode(), &response, cache.ForceReload()); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// TrackRecommendations streams recommendations, re-requesting until a batch brings nothing new.
//
// The endpoint has no album seeds, so album ids are expanded into their tracks on the first
// fetch. Those tracks seed the request and are never recommended back.
func (s *SpotifyService) TrackRecommendations(ctx context.Context, seeds models.RecommendationSeeds) *RecommendationStream {
	if seeds.Empty() {
		return ExhaustedStream()
	}
	seedTracks := append([]string(nil), seeds.Tracks...)
	albums := seeds.Albums
	var own map[string]bool

	return NewRecommendationStream(func(ctx context.Context) ([]models.TrackCandidate, error) {
		if albums != nil {
			ids, err := albumTrackIDs(ctx, s, albums)
			if err != nil {
				return nil, err
			}
			own = make(map[string]bool, len(ids))
			for _, id := range ids {
				own[id] = true
			}
			seeds = models.RecommendationSeeds{
				Tracks:  appendSeeds(seeds.Tracks, ids, spotifyMaxSeeds),
				Artists: seeds.Artists,
			}
			albums = nil
		}
		if len(seeds.Tracks) == 0 && len(seeds.Artists) == 0 {
			return nil, nil
		}

		tracks, err := s.Recommendations(ctx, seeds, spotifyRecommendationsLimit)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("fetched recommendations", "count", len(tracks))
		out := make([]models.TrackCandidate, 0, len(tracks))
		for _, t := range tracks {
			if own[t.CandidateID()] {
				continue
			}
			out = append(out, t)
		}
		return out, nil
	}, seedTracks...)
}

func spotifyAlbumQuery(p SearchParams) string {
	if p.Query != "" {
		return p.Query
	}
	var parts []string
	if p.Album != "" {
		parts = append(parts, "album:"+p.Album)
	} else if p.Title != "" {
		parts = append(parts, "album:"+p.Title)
	}
	if p.Artist != "" {
		parts = append(parts, "artist:"+p.Artist)
	}
	return strings.Join(parts, " ")
}

func spotifyTrackQuery(p SearchParams) string {
	if p.Query != "" {
		return p.Query
	}
	var parts []string
	if p.Title != "" {
		parts = append(parts, "track:"+p.Title)
	}
	if p.Artist != "" {
		parts = append(parts, "artist:"+p.Artist)
	}
	return strings.Join(parts, " ")
}

// capSeeds keeps at most n seeds overall, preferring tracks.
func capSeeds(tracks, artists []string, n int) ([]string, []string) {
	if len(tracks) > n {
		tracks = tracks[:n]
	}
	if room := n - len(tracks); len(artists) > room {
		artists = artists[:room]
	}
	return tracks, artists
}
