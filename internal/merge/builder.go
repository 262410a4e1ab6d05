package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

// Builder merges external data into a seed [models.AlbumCombo]. The first error is sticky and returned by Build.
type Builder struct {
	combo models.AlbumCombo
	err   error
	built bool
}

// NewBuilder copies seed so the caller's slices are never mutated.
func NewBuilder(seed models.AlbumCombo) *Builder {
	c := models.AlbumCombo{
		Album:   seed.Album,
		Artists: append([]models.ArtistCredit(nil), seed.Artists...),
		Tags:    append([]string(nil), seed.Tags...),
		Tracks:  make([]models.TrackCombo, len(seed.Tracks)),
	}
	for i, tc := range seed.Tracks {
		c.Tracks[i] = models.TrackCombo{
			Track:   tc.Track,
			Artists: append([]models.ArtistCredit(nil), tc.Artists...),
		}
	}
	return &Builder{combo: c}
}

func (b *Builder) usable() bool {
	if b.built && b.err == nil {
		b.err = shared.ErrBuilderConsumed
	}
	return b.err == nil
}

// MergeAlbum fills fields the seed album lacks from other. Non-empty seed fields are never overwritten.
func (b *Builder) MergeAlbum(other models.Album) *Builder {
	if !b.usable() {
		return b
	}
	a := &b.combo.Album
	fill(&a.Title, other.Title)
	fill(&a.AlbumType, other.AlbumType)
	fill(&a.ArtURL, other.ArtURL)
	fill(&a.SpotifyID, other.SpotifyID)
	fill(&a.MusicBrainzReleaseID, other.MusicBrainzReleaseID)
	fill(&a.MusicBrainzReleaseGroupID, other.MusicBrainzReleaseGroupID)
	fill(&a.YoutubePlaylistID, other.YoutubePlaylistID)
	if a.Year == 0 {
		a.Year = other.Year
	}
	return b
}

// MergeArtists merges other's credits into the album credits, re-keyed to the seed album.
func (b *Builder) MergeArtists(other []models.ArtistCredit, strategy models.ListMergeStrategy) *Builder {
	if !b.usable() {
		return b
	}
	merged, err := mergeCredits(b.combo.Artists, other, b.combo.Album.ID, strategy)
	if err != nil {
		b.err = err
		return b
	}
	b.combo.Artists = merged
	return b
}

// MergeTags merges other's tags into the album tag set.
func (b *Builder) MergeTags(other []string, strategy models.ListMergeStrategy) *Builder {
	if !b.usable() {
		return b
	}
	switch strategy {
	case models.ListReplace:
		if len(other) > 0 {
			b.combo.Tags = uniqueTags(nil, other)
		}
	case models.ListMerge:
		b.combo.Tags = uniqueTags(b.combo.Tags, other)
	default:
		b.err = fmt.Errorf("%w: list merge strategy %d", shared.ErrInvalidArgument, strategy)
	}
	return b
}

// MergeCombo runs MergeAlbum, MergeArtists, MergeTags, and MergeTrackCombos with other.
func (b *Builder) MergeCombo(other models.AlbumCombo, lists models.ListMergeStrategy, tracks models.TrackMergeStrategy, trackArtists models.ListMergeStrategy) *Builder {
	return b.
		MergeAlbum(other.Album).
		MergeArtists(other.Artists, lists).
		MergeTags(other.Tags, lists).
		MergeTrackCombos(other.Tracks, tracks, trackArtists)
}

type slot struct {
	disc, position int
}

func (s slot) less(o slot) bool {
	if s.disc != o.disc {
		return s.disc < o.disc
	}
	return s.position < o.position
}

// slotOf returns where a track sits on the album. Unknown positions fall back to list order.
func slotOf(t models.Track, index int) slot {
	s := slot{disc: t.DiscNumber, position: t.AlbumPosition}
	if s.disc <= 0 {
		s.disc = 1
	}
	if s.position <= 0 {
		s.position = index + 1
	}
	return s
}

// MergeTrackCombos aligns the seed tracks with other's by disc and position.
// Slots present on both sides are merged field by field; one-sided slots survive according to strategy.
// trackArtists decides whether the seed's own credits are kept alongside other's.
func (b *Builder) MergeTrackCombos(other []models.TrackCombo, strategy models.TrackMergeStrategy, trackArtists models.ListMergeStrategy) *Builder {
	if !b.usable() {
		return b
	}
	switch strategy {
	case models.KeepSelf, models.KeepOther, models.KeepMost, models.KeepLeast:
	default:
		b.err = fmt.Errorf("%w: track merge strategy %d", shared.ErrInvalidArgument, strategy)
		return b
	}

	// A slot can hold several tracks on either side. The first of each side is aligned, the rest
	// are one-sided rows right after it.
	seedBySlot := make(map[slot][]models.TrackCombo, len(b.combo.Tracks))
	otherBySlot := make(map[slot][]models.TrackCombo, len(other))
	var slots []slot

	for i, tc := range b.combo.Tracks {
		s := slotOf(tc.Track, i)
		if _, dup := seedBySlot[s]; !dup {
			slots = append(slots, s)
		}
		seedBySlot[s] = append(seedBySlot[s], tc)
	}
	for i, tc := range other {
		s := slotOf(tc.Track, i)
		_, inSeed := seedBySlot[s]
		_, dup := otherBySlot[s]
		if !inSeed && !dup {
			slots = append(slots, s)
		}
		otherBySlot[s] = append(otherBySlot[s], tc)
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].less(slots[j]) })

	album := b.combo.Album
	merged := make([]models.TrackCombo, 0, len(slots))

	for _, s := range slots {
		seeds, exts := seedBySlot[s], otherBySlot[s]

		if len(seeds) > 0 && len(exts) > 0 {
			tc, err := mergeTrack(seeds[0], exts[0], s, trackArtists)
			if err != nil {
				b.err = err
				return b
			}
			merged = append(merged, tc)
			seeds, exts = seeds[1:], exts[1:]
		}
		if strategy.KeepsSelf() {
			merged = append(merged, seeds...)
		}
		if strategy.KeepsOther() {
			for _, ext := range exts {
				merged = append(merged, adoptTrack(ext, album, s))
			}
		}
	}

	b.combo.Tracks = merged
	return b
}

// mergeTrack fills the seed track's gaps from ext. Title and identifiers stay the seed's.
func mergeTrack(seed, ext models.TrackCombo, s slot, trackArtists models.ListMergeStrategy) (models.TrackCombo, error) {
	t := seed.Track
	o := ext.Track

	fill(&t.URI, o.URI)
	fill(&t.SpotifyID, o.SpotifyID)
	fill(&t.MusicBrainzRecordingID, o.MusicBrainzRecordingID)
	fill(&t.YoutubeVideoID, o.YoutubeVideoID)
	fill(&t.Metadata, o.Metadata)
	fill(&t.ImageURL, o.ImageURL)
	if t.DurationMs == 0 {
		t.DurationMs = o.DurationMs
	}
	if t.AlbumPosition == 0 {
		t.AlbumPosition = s.position
	}
	if t.DiscNumber == 0 {
		t.DiscNumber = o.DiscNumber
	}

	artists, err := mergeCredits(seed.Artists, ext.Artists, t.ID, trackArtists)
	if err != nil {
		return models.TrackCombo{}, err
	}
	return models.TrackCombo{Track: t, Artists: artists}, nil
}

// adoptTrack turns an other-only track into a new member of the seed album.
func adoptTrack(ext models.TrackCombo, album models.Album, s slot) models.TrackCombo {
	t := ext.Track
	t.ID = shared.GenerateID()
	t.AlbumID = album.ID
	t.IsInLibrary = album.IsInLibrary
	t.AlbumPosition = s.position
	if t.DiscNumber == 0 {
		t.DiscNumber = s.disc
	}
	return models.TrackCombo{Track: t, Artists: rekey(ext.Artists, t.ID)}
}

// SetAlbumArt overrides the album art URL.
func (b *Builder) SetAlbumArt(url string) *Builder {
	if b.usable() {
		b.combo.Album.ArtURL = url
	}
	return b
}

// SetIsInLibrary sets the flag on the album and every track.
func (b *Builder) SetIsInLibrary(v bool) *Builder {
	if !b.usable() {
		return b
	}
	b.combo.Album.IsInLibrary = v
	for i := range b.combo.Tracks {
		b.combo.Tracks[i].Track.IsInLibrary = v
	}
	return b
}

// Build returns the merged combo. Tracks point at the merged album.
func (b *Builder) Build() (models.AlbumCombo, error) {
	if !b.usable() {
		return models.AlbumCombo{}, b.err
	}
	b.built = true

	out := b.combo
	album := out.Album
	for i := range out.Tracks {
		out.Tracks[i].Track.AlbumID = album.ID
		out.Tracks[i].Album = &album
	}
	b.combo = models.AlbumCombo{}
	return out, nil
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// mergeCredits applies strategy to two credit lists. An empty other list leaves the seed untouched.
func mergeCredits(seed, other []models.ArtistCredit, ownerID string, strategy models.ListMergeStrategy) ([]models.ArtistCredit, error) {
	switch strategy {
	case models.ListReplace:
		if len(other) == 0 {
			return seed, nil
		}
		return uniqueCredits(nil, rekey(other, ownerID)), nil
	case models.ListMerge:
		return uniqueCredits(seed, rekey(other, ownerID)), nil
	}
	return nil, fmt.Errorf("%w: list merge strategy %d", shared.ErrInvalidArgument, strategy)
}

func rekey(credits []models.ArtistCredit, ownerID string) []models.ArtistCredit {
	out := make([]models.ArtistCredit, len(credits))
	for i, c := range credits {
		c.OwnerID = ownerID
		out[i] = c
	}
	return out
}

func uniqueCredits(base, extra []models.ArtistCredit) []models.ArtistCredit {
	seen := make(map[string]int, len(base)+len(extra))
	out := make([]models.ArtistCredit, 0, len(base)+len(extra))
	for _, list := range [][]models.ArtistCredit{base, extra} {
		for _, c := range list {
			if i, ok := seen[c.Key()]; ok {
				fill(&out[i].SpotifyID, c.SpotifyID)
				fill(&out[i].MusicBrainzID, c.MusicBrainzID)
				continue
			}
			seen[c.Key()] = len(out)
			out = append(out, c)
		}
	}
	return out
}

func uniqueTags(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tag)
		}
	}
	return out
}
