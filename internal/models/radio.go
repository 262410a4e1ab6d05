package models

import (
	"fmt"
	"time"
)

// RadioType selects what a radio session is seeded from.
type RadioType string

const (
	RadioLibrary RadioType = "library"
	RadioArtist  RadioType = "artist"
	RadioAlbum   RadioType = "album"
	RadioTrack   RadioType = "track"
)

// ParseRadioType validates a radio type name.
func ParseRadioType(s string) (RadioType, error) {
	switch t := RadioType(s); t {
	case RadioLibrary, RadioArtist, RadioAlbum, RadioTrack:
		return t, nil
	}
	return "", fmt.Errorf("unknown radio type %q", s)
}

// RadioState is the persisted state of the active radio session.
// Used id sets are appended on every emission; a new activation starts empty.
type RadioState struct {
	Type                RadioType `json:"type"`
	SeedID              string    `json:"seed_id,omitempty"`
	UsedSpotifyTrackIDs []string  `json:"used_spotify_track_ids"`
	UsedYoutubeVideoIDs []string  `json:"used_youtube_video_ids"`
	UsedLocalTrackIDs   []string  `json:"used_local_track_ids"`
	Initialized         bool      `json:"initialized"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UsedIDs returns the used id list for the given provider.
func (s *RadioState) UsedIDs(p Provider) []string {
	switch p {
	case ProviderSpotify:
		return s.UsedSpotifyTrackIDs
	case ProviderYouTube:
		return s.UsedYoutubeVideoIDs
	case ProviderLocal:
		return s.UsedLocalTrackIDs
	}
	return nil
}

// AppendUsed records id as used for p. Empty ids are ignored.
func (s *RadioState) AppendUsed(p Provider, id string) {
	if id == "" {
		return
	}
	switch p {
	case ProviderSpotify:
		s.UsedSpotifyTrackIDs = append(s.UsedSpotifyTrackIDs, id)
	case ProviderYouTube:
		s.UsedYoutubeVideoIDs = append(s.UsedYoutubeVideoIDs, id)
	case ProviderLocal:
		s.UsedLocalTrackIDs = append(s.UsedLocalTrackIDs, id)
	}
}
