package services

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

// LocalFile is a track read from the filesystem. Its tags come from the out-of-process tagger.
type LocalFile struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Year        int
	Disc        int
	Position    int
	Duration    time.Duration
}

func (f LocalFile) Provider() models.Provider { return models.ProviderLocal }

// CandidateID is the file URI.
func (f LocalFile) CandidateID() string { return f.URI() }

// URI returns the file:// URI of the file.
func (f LocalFile) URI() string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(f.Path)}
	return u.String()
}

// ToTrackCombo converts the file. Missing titles fall back to the file name.
func (f LocalFile) ToTrackCombo() models.TrackCombo {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
	}
	tc := models.TrackCombo{
		Track: models.Track{
			Title:         title,
			DiscNumber:    f.Disc,
			AlbumPosition: f.Position,
			DurationMs:    f.Duration.Milliseconds(),
			URI:           f.URI(),
		},
	}
	if f.Artist != "" {
		tc.Artists = []models.ArtistCredit{{Name: f.Artist}}
	}
	if f.Album != "" {
		tc.Album = &models.Album{Title: f.Album, Year: f.Year, IsLocal: true}
	}
	return tc
}

// ParseLocalFileLine parses "path|title|artist|album|seconds". Only the path is required.
func ParseLocalFileLine(line string) (LocalFile, error) {
	fields := strings.Split(line, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) == 0 || fields[0] == "" {
		return LocalFile{}, fmt.Errorf("%w: missing path", shared.ErrInvalidInput)
	}
	if len(fields) > 5 {
		return LocalFile{}, fmt.Errorf("%w: expected at most 5 fields, got %d", shared.ErrInvalidInput, len(fields))
	}

	f := LocalFile{Path: fields[0]}
	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	f.Title, f.Artist, f.Album = get(1), get(2), get(3)
	f.AlbumArtist = f.Artist

	if s := get(4); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || secs < 0 {
			return LocalFile{}, fmt.Errorf("%w: bad duration %q", shared.ErrInvalidInput, s)
		}
		f.Duration = time.Duration(secs * float64(time.Second))
	}
	return f, nil
}

// GroupLocalFiles builds album combos from files sharing an album title and album artist.
// Files without an album become single-track combos with no album row.
func GroupLocalFiles(files []LocalFile) (albums []models.AlbumCombo, loose []models.TrackCombo) {
	index := map[string]int{}
	for _, f := range files {
		tc := f.ToTrackCombo()
		if tc.Album == nil {
			loose = append(loose, tc)
			continue
		}

		key := strings.ToLower(f.Album) + "\x00" + strings.ToLower(f.AlbumArtist)
		i, ok := index[key]
		if !ok {
			combo := models.AlbumCombo{Album: *tc.Album}
			if f.AlbumArtist != "" {
				combo.Artists = []models.ArtistCredit{{Name: f.AlbumArtist}}
			}
			albums = append(albums, combo)
			i = len(albums) - 1
			index[key] = i
		}
		if tc.Track.AlbumPosition == 0 {
			tc.Track.AlbumPosition = len(albums[i].Tracks) + 1
		}
		tc.Album = nil
		albums[i].Tracks = append(albums[i].Tracks, tc)
	}
	return albums, loose
}
