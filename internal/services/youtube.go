// YouTube Music implementation of [Provider] and [Recommender]
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"errors"
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
)

const (
	defaultYTBaseURL         = "http://localhost:8080"
	youtubeSearchLimit       = 10
	youtubeWatchLimit        = 25
	youtubeFrontierLimit     = 200
	youtubeWatchURLPrefix    = "https://music.youtube.com/watch?v="
	youtubePlaylistURLPrefix = "https://music.youtube.com/playlist?list="
)

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbumRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string           `json:"videoId"`
	Title       string           `json:"title"`
	Artists     []YouTubeArtist  `json:"artists"`
	Album       *youtubeAlbumRef `json:"album"`
	Duration    string           `json:"duration"`
	DurationSec int              `json:"duration_seconds"`
	TrackNumber int              `json:"trackNumber"`
	Thumbnails  []YouTubeImage   `json:"thumbnails"`
}

func (t YouTubeTrack) Provider() models.Provider { return models.ProviderYouTube }
func (t YouTubeTrack) CandidateID() string       { return t.VideoID }

// ToTrackCombo converts the track. The watch URL becomes the playable URI.
func (t YouTubeTrack) ToTrackCombo() models.TrackCombo {
	durationMs := int64(t.DurationSec) * 1000
	if durationMs == 0 {
		durationMs = parseClockDuration(t.Duration)
	}
	tc := models.TrackCombo{
		Track: models.Track{
			ID:             t.VideoID,
			Title:          t.Title,
			AlbumPosition:  t.TrackNumber,
			DurationMs:     durationMs,
			YoutubeVideoID: t.VideoID,
			ImageURL:       largestThumbnail(t.Thumbnails),
		},
		Artists: youtubeCredits(t.Artists, t.VideoID),
	}
	if t.VideoID != "" {
		tc.Track.URI = youtubeWatchURLPrefix + t.VideoID
	}
	if t.Album != nil && t.Album.Name != "" {
		tc.Album = &models.Album{ID: t.Album.ID, Title: t.Album.Name}
		tc.Track.AlbumID = t.Album.ID
	}
	return tc
}

// YouTubeAlbum is an album search hit or lookup. Tracks is only populated by lookups.
type YouTubeAlbum struct {
	BrowseID        string          `json:"browseId"`
	Title           string          `json:"title"`
	Type            string          `json:"type"`
	Year            string          `json:"year"`
	Artists         []YouTubeArtist `json:"artists"`
	Thumbnails      []YouTubeImage  `json:"thumbnails"`
	AudioPlaylistID string          `json:"audioPlaylistId"`
	Tracks          []YouTubeTrack  `json:"tracks,omitempty"`
}

func (a YouTubeAlbum) Provider() models.Provider { return models.ProviderYouTube }
func (a YouTubeAlbum) CandidateID() string       { return a.BrowseID }

// ToAlbumCombo converts the album and any nested tracks.
func (a YouTubeAlbum) ToAlbumCombo() models.AlbumCombo {
	album := models.Album{
		ID:                a.BrowseID,
		Title:             a.Title,
		Year:              releaseYear(a.Year),
		AlbumType:         strings.ToLower(a.Type),
		ArtURL:            largestThumbnail(a.Thumbnails),
		YoutubePlaylistID: a.AudioPlaylistID,
	}
	combo := models.AlbumCombo{Album: album, Artists: youtubeCredits(a.Artists, a.BrowseID)}
	for i, t := range a.Tracks {
		tc := t.ToTrackCombo()
		if tc.Track.AlbumPosition == 0 {
			tc.Track.AlbumPosition = i + 1
		}
		if len(tc.Artists) == 0 {
			tc.Artists = youtubeCredits(a.Artists, t.VideoID)
		}
		if tc.Track.ImageURL == "" {
			tc.Track.ImageURL = album.ArtURL
		}
		tc.Track.AlbumID = album.ID
		tc.Album = &album
		combo.Tracks = append(combo.Tracks, tc)
	}
	return combo
}

// PlaylistURL is the browser URL of the album's audio playlist, if known.
func (a YouTubeAlbum) PlaylistURL() string {
	if a.AudioPlaylistID == "" {
		return ""
	}
	return youtubePlaylistURLPrefix + a.AudioPlaylistID
}

func youtubeCredits(artists []YouTubeArtist, ownerID string) []models.ArtistCredit {
	out := make([]models.ArtistCredit, 0, len(artists))
	for i, a := range artists {
		out = append(out, models.ArtistCredit{OwnerID: ownerID, Position: i, Name: a.Name})
	}
	return out
}

func largestThumbnail(images []YouTubeImage) string {
	best, area := "", -1
	for _, img := range images {
		if a := img.Width * img.Height; a > area {
			best, area = img.URL, a
		}
	}
	return best
}

// YouTubeOpts configures a [YouTubeService].
type YouTubeOpts struct {
	BaseURL string
	// AuthFile is forwarded to the proxy in the X-Auth-File header.
	AuthFile   string
	HTTPClient *http.Client
	Throttle   ratelimit.Throttle
	Retention  int
	Logger     *log.Logger
}

// YouTubeService is the video-host provider.
type YouTubeService struct {
	baseURL   string
	requester *Requester
	logger    *log.Logger
}

// NewYouTubeService creates a YouTube Music provider with its own cache and rate limiter.
func NewYouTubeService(opts YouTubeOpts) *YouTubeService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultYTBaseURL
	}
	header := http.Header{}
	if opts.AuthFile != "" {
		header.Set("X-Auth-File", opts.AuthFile)
	}

	return &YouTubeService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		requester: NewRequester(RequesterOpts{
			Name:       models.ProviderYouTube.String(),
			HTTPClient: opts.HTTPClient,
			Throttle:   opts.Throttle,
			Retention:  secondsOrZero(opts.Retention),
			Header:     header,
			Logger:     opts.Logger,
		}),
		logger: shared.WithLogger(opts.Logger, "component", "youtube"),
	}
}

func (y *YouTubeService) Name() models.Provider { return models.ProviderYouTube }

// Close releases the cache and rate limiter.
func (y *YouTubeService) Close() error { return y.requester.Close() }

// SearchAlbums calls GET /api/search?filter=albums on the proxy.
func (y *YouTubeService) SearchAlbums(ctx context.Context, params SearchParams) ([]models.AlbumCandidate, error) {
	var results []YouTubeAlbum
	if err := y.search(ctx, "albums", params, &results); err != nil {
		return nil, err
	}
	candidates := make([]models.AlbumCandidate, 0, len(results))
	for _, a := range results {
		candidates = append(candidates, a)
	}
	return candidates, nil
}

// SearchTracks calls GET /api/search?filter=songs on the proxy.
func (y *YouTubeService) SearchTracks(ctx context.Context, params SearchParams) ([]models.TrackCandidate, error) {
	var results []YouTubeTrack
	if err := y.search(ctx, "songs", params, &results); err != nil {
		return nil, err
	}
	candidates := make([]models.TrackCandidate, 0, len(results))
	for _, t := range results {
		if t.VideoID == "" {
			continue
		}
		candidates = append(candidates, t)
	}
	return candidates, nil
}

func (y *YouTubeService) search(ctx context.Context, filter string, params SearchParams, dst any) error {
	query := params.Text()
	if query == "" {
		return fmt.Errorf("%w: empty search", shared.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("filter", filter)
	q.Set("limit", strconv.Itoa(params.limit(youtubeSearchLimit)))
	return y.requester.GetJSON(ctx, y.baseURL+"/api/search?"+q.Encode(), dst)
}

// Album calls GET /api/albums/{browseId} on the proxy.
func (y *YouTubeService) Album(ctx context.Context, browseID string) (*YouTubeAlbum, error) {
	var album YouTubeAlbum
	if err := y.requester.GetJSON(ctx, y.baseURL+"/api/albums/"+url.PathEscape(browseID), &album); err != nil {
		return nil, err
	}
	if album.BrowseID == "" {
		album.BrowseID = browseID
	}
	return &album, nil
}

// AlbumCombo fetches an album with its tracks.
func (y *YouTubeService) AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error) {
	album, err := y.Album(ctx, id)
	if err != nil {
		return models.AlbumCombo{}, err
	}
	return album.ToAlbumCombo(), nil
}

// WatchPlaylist calls GET /api/watch?videoId= on the proxy, the "up next" list for a video.
func (y *YouTubeService) WatchPlaylist(ctx context.Context, videoID string, limit int) ([]YouTubeTrack, error) {
	q := url.Values{}
	q.Set("videoId", videoID)
	q.Set("limit", strconv.Itoa(limit))

	var response struct {
		Tracks []YouTubeTrack `json:"tracks"`
	}
	if err := y.requester.GetJSON(ctx, y.baseURL+"/api/watch?"+q.Encode(), &response, cache.ForceReload()); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// Playlist calls GET /api/playlists/{playlistId} on the proxy, the tracks of a playlist.
func (y *YouTubeService) Playlist(ctx context.Context, playlistID string) ([]YouTubeTrack, error) {
	var response struct {
		Tracks []YouTubeTrack `json:"tracks"`
	}
	if err := y.requester.GetJSON(ctx, y.baseURL+"/api/playlists/"+url.PathEscape(playlistID), &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// ArtistSongs calls GET /api/artists/{channelId} on the proxy, the artist's top songs.
func (y *YouTubeService) ArtistSongs(ctx context.Context, channelID string) ([]YouTubeTrack, error) {
	var response struct {
		Name  string         `json:"name"`
		Songs []YouTubeTrack `json:"songs"`
	}
	if err := y.requester.GetJSON(ctx, y.baseURL+"/api/artists/"+url.PathEscape(channelID), &response); err != nil {
		return nil, err
	}
	return response.Songs, nil
}

// seedVideos expands album playlists and artists into video ids. Album videos are also returned as own.
func (y *YouTubeService) seedVideos(ctx context.Context, seeds models.RecommendationSeeds) (videos []string, own map[string]bool, err error) {
	own = map[string]bool{}
	collect := func(tracks []YouTubeTrack, mine bool) {
		for _, t := range tracks {
			if t.VideoID == "" {
				continue
			}
			videos = append(videos, t.VideoID)
			if mine {
				own[t.VideoID] = true
			}
		}
	}

	for _, id := range seeds.Albums {
		tracks, err := y.Playlist(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		collect(tracks, true)
	}
	for _, id := range seeds.Artists {
		tracks, err := y.ArtistSongs(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		collect(tracks, false)
	}
	return videos, own, nil
}

// TrackRecommendations walks the watch playlists of the seed videos, then of the videos it has returned.
//
// Album and artist seeds are expanded into videos on the first fetch. An album's own videos seed
// the walk but are never recommended back; an artist's songs are fair game.
func (y *YouTubeService) TrackRecommendations(ctx context.Context, seeds models.RecommendationSeeds) *RecommendationStream {
	if seeds.Empty() {
		return ExhaustedStream()
	}
	frontier := append([]string(nil), seeds.Tracks...)
	expand := len(seeds.Albums) > 0 || len(seeds.Artists) > 0
	var own map[string]bool

	return NewRecommendationStream(func(ctx context.Context) ([]models.TrackCandidate, error) {
		if expand {
			videos, albumVideos, err := y.seedVideos(ctx, seeds)
			if err != nil {
				return nil, err
			}
			frontier, own, expand = append(frontier, videos...), albumVideos, false
		}

		for len(frontier) > 0 {
			videoID := frontier[0]
			frontier = frontier[1:]

			tracks, err := y.WatchPlaylist(ctx, videoID, youtubeWatchLimit)
			if err != nil {
				return nil, err
			}
			y.logger.Debug("fetched watch playlist", "video_id", videoID, "count", len(tracks))

			out := make([]models.TrackCandidate, 0, len(tracks))
			for _, t := range tracks {
				if t.VideoID == "" || t.VideoID == videoID || own[t.VideoID] {
					continue
				}
				out = append(out, t)
				if len(frontier) < youtubeFrontierLimit {
					frontier = append(frontier, t.VideoID)
				}
			}
			if len(out) > 0 {
				return out, nil
			}
		}
		return nil, nil
	}, seeds.Tracks...)
}
