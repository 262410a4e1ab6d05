package models

import (
	"strconv"
	"strings"
	"time"
)

// Provider names an external (or local) source of album/track data.
type Provider string

const (
	ProviderSpotify     Provider = "spotify"
	ProviderMusicBrainz Provider = "musicbrainz"
	ProviderYouTube     Provider = "youtube"
	ProviderLocal       Provider = "local"
)

func (p Provider) String() string { return string(p) }

// Album is the canonical album record.
type Album struct {
	ID                        string    `db:"id" json:"id"`
	Title                     string    `db:"title" json:"title"`
	Year                      int       `db:"year" json:"year,omitempty"`
	AlbumType                 string    `db:"album_type" json:"album_type,omitempty"`
	ArtURL                    string    `db:"art_url" json:"art_url,omitempty"`
	SpotifyID                 string    `db:"spotify_id" json:"spotify_id,omitempty"`
	MusicBrainzReleaseID      string    `db:"musicbrainz_release_id" json:"musicbrainz_release_id,omitempty"`
	MusicBrainzReleaseGroupID string    `db:"musicbrainz_release_group_id" json:"musicbrainz_release_group_id,omitempty"`
	YoutubePlaylistID         string    `db:"youtube_playlist_id" json:"youtube_playlist_id,omitempty"`
	IsLocal                   bool      `db:"is_local" json:"is_local"`
	IsInLibrary               bool      `db:"is_in_library" json:"is_in_library"`
	IsHidden                  bool      `db:"is_hidden" json:"is_hidden"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// ExternalID returns the album's id for the given provider, or "".
func (a Album) ExternalID(p Provider) string {
	switch p {
	case ProviderSpotify:
		return a.SpotifyID
	case ProviderMusicBrainz:
		return a.MusicBrainzReleaseID
	case ProviderYouTube:
		return a.YoutubePlaylistID
	}
	return ""
}

// Track is the canonical track record. AlbumID is "" for standalone tracks.
type Track struct {
	ID                     string    `db:"id" json:"id"`
	AlbumID                string    `db:"album_id" json:"album_id,omitempty"`
	Title                  string    `db:"title" json:"title"`
	DiscNumber             int       `db:"disc_number" json:"disc_number,omitempty"`
	AlbumPosition          int       `db:"album_position" json:"album_position,omitempty"`
	DurationMs             int64     `db:"duration_ms" json:"duration_ms,omitempty"`
	URI                    string    `db:"uri" json:"uri,omitempty"`
	SpotifyID              string    `db:"spotify_id" json:"spotify_id,omitempty"`
	MusicBrainzRecordingID string    `db:"musicbrainz_recording_id" json:"musicbrainz_recording_id,omitempty"`
	YoutubeVideoID         string    `db:"youtube_video_id" json:"youtube_video_id,omitempty"`
	Metadata               string    `db:"metadata" json:"metadata,omitempty"`
	ImageURL               string    `db:"image_url" json:"image_url,omitempty"`
	IsInLibrary            bool      `db:"is_in_library" json:"is_in_library"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the track length, 0 when unknown.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// ExternalID returns the track's id for the given provider, or "".
func (t Track) ExternalID(p Provider) string {
	switch p {
	case ProviderSpotify:
		return t.SpotifyID
	case ProviderMusicBrainz:
		return t.MusicBrainzRecordingID
	case ProviderYouTube:
		return t.YoutubeVideoID
	case ProviderLocal:
		return t.URI
	}
	return ""
}

// SetExternalID stores id in the field belonging to p.
func (t *Track) SetExternalID(p Provider, id string) {
	switch p {
	case ProviderSpotify:
		t.SpotifyID = id
	case ProviderMusicBrainz:
		t.MusicBrainzRecordingID = id
	case ProviderYouTube:
		t.YoutubeVideoID = id
	case ProviderLocal:
		t.URI = id
	}
}

// IsPlayable reports whether the track can be handed to playback.
func (t Track) IsPlayable() bool {
	return t.URI != "" || t.YoutubeVideoID != ""
}

// ArtistCredit is one entry of an ordered artist-credit list. OwnerID is the album or track id the credit belongs to.
type ArtistCredit struct {
	OwnerID       string `db:"owner_id" json:"owner_id"`
	Position      int    `db:"position" json:"position"`
	Name          string `db:"name" json:"name"`
	SpotifyID     string `db:"spotify_id" json:"spotify_id,omitempty"`
	MusicBrainzID string `db:"musicbrainz_id" json:"musicbrainz_id,omitempty"`
	JoinPhrase    string `db:"join_phrase" json:"join_phrase,omitempty"`
}

// Key identifies a credit for set semantics: the same artist at the same position.
func (c ArtistCredit) Key() string {
	return strings.ToLower(strings.TrimSpace(c.Name)) + "\x00" + strconv.Itoa(c.Position)
}

// JoinArtists renders a credit list the way it reads on a sleeve, e.g. "A feat. B".
func JoinArtists(credits []ArtistCredit) string {
	var b strings.Builder
	for i, c := range credits {
		b.WriteString(c.Name)
		if i == len(credits)-1 {
			break
		}
		if c.JoinPhrase != "" {
			b.WriteString(c.JoinPhrase)
		} else {
			b.WriteString(", ")
		}
	}
	return b.String()
}

// TrackCombo is a track joined with its album and artist credits.
type TrackCombo struct {
	Track   Track          `json:"track"`
	Album   *Album         `json:"album,omitempty"`
	Artists []ArtistCredit `json:"artists"`
}

// ArtistString returns the joined artist credits.
func (c TrackCombo) ArtistString() string { return JoinArtists(c.Artists) }

// AlbumCombo is an album joined with its artist credits, tags, and tracks.
type AlbumCombo struct {
	Album   Album          `json:"album"`
	Artists []ArtistCredit `json:"artists"`
	Tags    []string       `json:"tags"`
	Tracks  []TrackCombo   `json:"tracks"`
}

// ArtistString returns the joined album artist credits.
func (c AlbumCombo) ArtistString() string { return JoinArtists(c.Artists) }

// TrackCount is the number of tracks in the combo.
func (c AlbumCombo) TrackCount() int { return len(c.Tracks) }

// ListMergeStrategy governs merging of artist and tag lists.
type ListMergeStrategy int

const (
	// ListReplace discards the seed list in favor of the other one.
	ListReplace ListMergeStrategy = iota
	// ListMerge unions both lists.
	ListMerge
)

// TrackMergeStrategy governs which one-sided track slots survive alignment.
type TrackMergeStrategy int

const (
	KeepSelf TrackMergeStrategy = iota
	KeepOther
	KeepMost
	KeepLeast
)

// KeepsSelf reports whether seed-only slots survive.
func (s TrackMergeStrategy) KeepsSelf() bool { return s == KeepSelf || s == KeepMost }

// KeepsOther reports whether other-only slots survive.
func (s TrackMergeStrategy) KeepsOther() bool { return s == KeepOther || s == KeepMost }

func (s TrackMergeStrategy) String() string {
	switch s {
	case KeepSelf:
		return "keep_self"
	case KeepOther:
		return "keep_other"
	case KeepMost:
		return "keep_most"
	case KeepLeast:
		return "keep_least"
	}
	return "unknown"
}

// ParseTrackMergeStrategy is the inverse of [TrackMergeStrategy.String].
func ParseTrackMergeStrategy(s string) (TrackMergeStrategy, bool) {
	for _, v := range []TrackMergeStrategy{KeepSelf, KeepOther, KeepMost, KeepLeast} {
		if v.String() == strings.ToLower(s) {
			return v, true
		}
	}
	return KeepSelf, false
}
