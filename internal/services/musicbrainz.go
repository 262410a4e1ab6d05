// MusicBrainz web service implementation of [Provider]
//
// Response types follow https://musicbrainz.org/doc/MusicBrainz_API (fmt=json).
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/ratelimit"
	"github.com/desertthunder/tonearm/internal/shared"
)

const (
	musicBrainzBaseURL     = "https://musicbrainz.org/ws/2"
	musicBrainzUserAgent   = "tonearm/1.0 (https://github.com/desertthunder/tonearm)"
	musicBrainzSearchLimit = 10
)

type mbArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type mbArtistCredit struct {
	Name       string   `json:"name"`
	JoinPhrase string   `json:"joinphrase"`
	Artist     mbArtist `json:"artist"`
}

type mbReleaseGroup struct {
	ID          string `json:"id"`
	PrimaryType string `json:"primary-type"`
}

type mbGenre struct {
	Name string `json:"name"`
}

type mbRecording struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Length       int64            `json:"length"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
}

type mbTrack struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Position     int              `json:"position"`
	Length       int64            `json:"length"`
	Recording    mbRecording      `json:"recording"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
}

type mbMedium struct {
	Position int       `json:"position"`
	Tracks   []mbTrack `json:"tracks"`
}

// MusicBrainzRelease is a release from search or lookup. Media is only populated by lookups.
type MusicBrainzRelease struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Date         string           `json:"date"`
	Score        int              `json:"score"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
	ReleaseGroup mbReleaseGroup   `json:"release-group"`
	Genres       []mbGenre        `json:"genres"`
	Media        []mbMedium       `json:"media"`
}

func (r MusicBrainzRelease) Provider() models.Provider { return models.ProviderMusicBrainz }
func (r MusicBrainzRelease) CandidateID() string       { return r.ID }

// ToAlbumCombo converts the release and its media.
func (r MusicBrainzRelease) ToAlbumCombo() models.AlbumCombo {
	album := models.Album{
		ID:                        r.ID,
		Title:                     r.Title,
		Year:                      releaseYear(r.Date),
		AlbumType:                 strings.ToLower(r.ReleaseGroup.PrimaryType),
		MusicBrainzReleaseID:      r.ID,
		MusicBrainzReleaseGroupID: r.ReleaseGroup.ID,
	}
	combo := models.AlbumCombo{Album: album, Artists: mbCredits(r.ArtistCredit, r.ID)}
	for _, g := range r.Genres {
		combo.Tags = append(combo.Tags, g.Name)
	}
	for _, m := range r.Media {
		for _, t := range m.Tracks {
			credits := t.ArtistCredit
			if len(credits) == 0 {
				credits = t.Recording.ArtistCredit
			}
			length := t.Length
			if length == 0 {
				length = t.Recording.Length
			}
			combo.Tracks = append(combo.Tracks, models.TrackCombo{
				Track: models.Track{
					ID:                     t.Recording.ID,
					AlbumID:                r.ID,
					Title:                  t.Title,
					DiscNumber:             m.Position,
					AlbumPosition:          t.Position,
					DurationMs:             length,
					MusicBrainzRecordingID: t.Recording.ID,
				},
				Album:   &album,
				Artists: mbCredits(credits, t.Recording.ID),
			})
		}
	}
	return combo
}

// MusicBrainzRecording is a recording search hit.
type MusicBrainzRecording struct {
	mbRecording
	Releases []MusicBrainzRelease `json:"releases"`
}

func (r MusicBrainzRecording) Provider() models.Provider { return models.ProviderMusicBrainz }
func (r MusicBrainzRecording) CandidateID() string       { return r.ID }

// ToTrackCombo converts the recording, attaching its first release as the album.
func (r MusicBrainzRecording) ToTrackCombo() models.TrackCombo {
	tc := models.TrackCombo{
		Track: models.Track{
			ID:                     r.ID,
			Title:                  r.Title,
			DurationMs:             r.Length,
			MusicBrainzRecordingID: r.ID,
		},
		Artists: mbCredits(r.ArtistCredit, r.ID),
	}
	if len(r.Releases) > 0 {
		album := r.Releases[0].ToAlbumCombo().Album
		tc.Album = &album
		tc.Track.AlbumID = album.ID
	}
	return tc
}

func mbCredits(credits []mbArtistCredit, ownerID string) []models.ArtistCredit {
	out := make([]models.ArtistCredit, 0, len(credits))
	for i, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		out = append(out, models.ArtistCredit{
			OwnerID:       ownerID,
			Position:      i,
			Name:          name,
			MusicBrainzID: c.Artist.ID,
			JoinPhrase:    c.JoinPhrase,
		})
	}
	return out
}

// MusicBrainzOpts configures a [MusicBrainzService].
type MusicBrainzOpts struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Throttle   ratelimit.Throttle
	Retention  int
	Logger     *log.Logger
}

// MusicBrainzService is the release-database provider. It does not recommend tracks.
type MusicBrainzService struct {
	baseURL   string
	requester *Requester
}

// NewMusicBrainzService creates a MusicBrainz provider with its own cache and rate limiter.
func NewMusicBrainzService(opts MusicBrainzOpts) *MusicBrainzService {
	if opts.BaseURL == "" {
		opts.BaseURL = musicBrainzBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = musicBrainzUserAgent
	}
	header := http.Header{}
	header.Set("User-Agent", opts.UserAgent)

	return &MusicBrainzService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		requester: NewRequester(RequesterOpts{
			Name:       models.ProviderMusicBrainz.String(),
			HTTPClient: opts.HTTPClient,
			Throttle:   opts.Throttle,
			Retention:  secondsOrZero(opts.Retention),
			Header:     header,
			Logger:     opts.Logger,
		}),
	}
}

func (m *MusicBrainzService) Name() models.Provider { return models.ProviderMusicBrainz }

// Close releases the cache and rate limiter.
func (m *MusicBrainzService) Close() error { return m.requester.Close() }

// SearchAlbums calls GET /release?query=.
func (m *MusicBrainzService) SearchAlbums(ctx context.Context, params SearchParams) ([]models.AlbumCandidate, error) {
	title := params.Album
	if title == "" {
		title = params.Title
	}
	query := params.Query
	if query == "" {
		query = luceneQuery(map[string]string{"release": title, "artist": params.Artist}, "release", "artist")
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty search", shared.ErrInvalidInput)
	}

	var response struct {
		Releases []MusicBrainzRelease `json:"releases"`
	}
	if err := m.requester.GetJSON(ctx, m.searchURL("release", query, params.limit(musicBrainzSearchLimit)), &response); err != nil {
		return nil, err
	}

	candidates := make([]models.AlbumCandidate, 0, len(response.Releases))
	for _, r := range response.Releases {
		candidates = append(candidates, r)
	}
	return candidates, nil
}

// SearchTracks calls GET /recording?query=.
func (m *MusicBrainzService) SearchTracks(ctx context.Context, params SearchParams) ([]models.TrackCandidate, error) {
	query := params.Query
	if query == "" {
		query = luceneQuery(map[string]string{"recording": params.Title, "artist": params.Artist, "release": params.Album}, "recording", "artist", "release")
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty search", shared.ErrInvalidInput)
	}

	var response struct {
		Recordings []MusicBrainzRecording `json:"recordings"`
	}
	if err := m.requester.GetJSON(ctx, m.searchURL("recording", query, params.limit(musicBrainzSearchLimit)), &response); err != nil {
		return nil, err
	}

	candidates := make([]models.TrackCandidate, 0, len(response.Recordings))
	for _, r := range response.Recordings {
		candidates = append(candidates, r)
	}
	return candidates, nil
}

// Release calls GET /release/{id} with recordings, artist credits and genres.
func (m *MusicBrainzService) Release(ctx context.Context, id string) (*MusicBrainzRelease, error) {
	u := fmt.Sprintf("%s/release/%s?inc=recordings+artist-credits+release-groups+genres&fmt=json", m.baseURL, url.PathEscape(id))
	var release MusicBrainzRelease
	if err := m.requester.GetJSON(ctx, u, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// AlbumCombo fetches a release with its track list.
func (m *MusicBrainzService) AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error) {
	release, err := m.Release(ctx, id)
	if err != nil {
		return models.AlbumCombo{}, err
	}
	return release.ToAlbumCombo(), nil
}

func (m *MusicBrainzService) searchURL(entity, query string, limit int) string {
	q := url.Values{}
	q.Set("query", query)
	q.Set("fmt", "json")
	q.Set("limit", strconv.Itoa(limit))
	return fmt.Sprintf("%s/%s?%s", m.baseURL, entity, q.Encode())
}

var luceneEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// luceneQuery builds `field:"value" AND ...` for the non-empty fields, in order.
func luceneQuery(values map[string]string, order ...string) string {
	var parts []string
	for _, field := range order {
		v := strings.TrimSpace(values[field])
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(`%s:"%s"`, field, luceneEscaper.Replace(v)))
	}
	return strings.Join(parts, " AND ")
}
