package merge

import (
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

func seedCombo() models.AlbumCombo {
	return models.AlbumCombo{
		Album: models.Album{ID: "album-1", Title: "Abbey Road", Year: 1969, IsLocal: true},
		Artists: []models.ArtistCredit{
			{OwnerID: "album-1", Name: "The Beatles", Position: 0},
		},
		Tags: []string{"rock"},
		Tracks: []models.TrackCombo{
			{Track: models.Track{ID: "t1", AlbumID: "album-1", Title: "Come Together", AlbumPosition: 1, URI: "file:///1.flac"}},
			{Track: models.Track{ID: "t2", AlbumID: "album-1", Title: "Something", AlbumPosition: 2, URI: "file:///2.flac"}},
			{Track: models.Track{ID: "t3", AlbumID: "album-1", Title: "Maxwell's Silver Hammer", AlbumPosition: 3, URI: "file:///3.flac"}},
		},
	}
}

func otherCombo() models.AlbumCombo {
	return models.AlbumCombo{
		Album: models.Album{ID: "sp-album", Title: "Abbey Road (Remastered)", AlbumType: "album", ArtURL: "https://img/abbey.jpg", SpotifyID: "sp-album", Year: 2019},
		Artists: []models.ArtistCredit{
			{Name: "The Beatles", Position: 0, SpotifyID: "sp-beatles"},
		},
		Tags: []string{"Rock", "classic rock"},
		Tracks: []models.TrackCombo{
			{
				Track:   models.Track{ID: "x2", Title: "Something - Remastered", AlbumPosition: 2, SpotifyID: "sp-t2", DurationMs: 182000, ImageURL: "https://img/t2.jpg"},
				Artists: []models.ArtistCredit{{Name: "The Beatles", SpotifyID: "sp-beatles"}},
			},
			{
				Track:   models.Track{ID: "x3", Title: "Maxwell's", AlbumPosition: 3, SpotifyID: "sp-t3", DurationMs: 207000},
				Artists: []models.ArtistCredit{{Name: "The Beatles"}},
			},
			{
				Track:   models.Track{ID: "x4", Title: "Oh! Darling", AlbumPosition: 4, SpotifyID: "sp-t4", DurationMs: 206000},
				Artists: []models.ArtistCredit{{Name: "The Beatles"}},
			},
		},
	}
}

func positions(c models.AlbumCombo) []int {
	var out []int
	for _, tc := range c.Tracks {
		out = append(out, tc.Track.AlbumPosition)
	}
	return out
}

func TestBuilder(t *testing.T) {
	t.Run("MergeAlbum fills only empty fields", func(t *testing.T) {
		got, err := NewBuilder(seedCombo()).MergeAlbum(otherCombo().Album).Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		a := got.Album
		if a.ID != "album-1" || a.Title != "Abbey Road" || a.Year != 1969 {
			t.Errorf("seed fields were overwritten: %+v", a)
		}
		if a.SpotifyID != "sp-album" || a.ArtURL != "https://img/abbey.jpg" || a.AlbumType != "album" {
			t.Errorf("empty fields were not filled: %+v", a)
		}
	})

	t.Run("track alignment with KeepMost", func(t *testing.T) {
		got, err := NewBuilder(seedCombo()).
			MergeTrackCombos(otherCombo().Tracks, models.KeepMost, models.ListReplace).
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if want := []int{1, 2, 3, 4}; !reflect.DeepEqual(positions(got), want) {
			t.Fatalf("expected positions %v, got %v", want, positions(got))
		}

		t1, t2, t3, t4 := got.Tracks[0].Track, got.Tracks[1].Track, got.Tracks[2].Track, got.Tracks[3].Track
		if t1.ID != "t1" || t1.SpotifyID != "" {
			t.Errorf("seed-only track should be kept untouched: %+v", t1)
		}
		if t2.ID != "t2" || t2.Title != "Something" || t2.SpotifyID != "sp-t2" || t2.DurationMs != 182000 || t2.ImageURL == "" {
			t.Errorf("track 2 not field-merged: %+v", t2)
		}
		if t2.URI != "file:///2.flac" {
			t.Errorf("seed URI should be preserved, got %q", t2.URI)
		}
		if t3.SpotifyID != "sp-t3" || t3.Title != "Maxwell's Silver Hammer" {
			t.Errorf("track 3 not field-merged: %+v", t3)
		}
		if t4.Title != "Oh! Darling" || t4.AlbumID != "album-1" || t4.ID == "" || t4.ID == "x4" {
			t.Errorf("other-only track should be adopted with a new id: %+v", t4)
		}

		if a := got.Tracks[1].Artists; len(a) != 1 || a[0].OwnerID != "t2" || a[0].SpotifyID != "sp-beatles" {
			t.Errorf("track artists should be re-keyed to the seed track: %+v", a)
		}
		if a := got.Tracks[3].Artists; len(a) != 1 || a[0].OwnerID != t4.ID {
			t.Errorf("adopted track artists should be keyed to the new id: %+v", a)
		}
		for _, tc := range got.Tracks {
			if tc.Album == nil || tc.Album.ID != "album-1" {
				t.Errorf("track %s should point at the merged album", tc.Track.ID)
			}
		}
	})

	t.Run("one-sided slots follow strategy", func(t *testing.T) {
		cases := []struct {
			strategy models.TrackMergeStrategy
			want     []int
		}{
			{models.KeepSelf, []int{1, 2, 3}},
			{models.KeepOther, []int{2, 3, 4}},
			{models.KeepMost, []int{1, 2, 3, 4}},
			{models.KeepLeast, []int{2, 3}},
		}
		for _, c := range cases {
			t.Run(c.strategy.String(), func(t *testing.T) {
				got, err := NewBuilder(seedCombo()).MergeTrackCombos(otherCombo().Tracks, c.strategy, models.ListMerge).Build()
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !reflect.DeepEqual(positions(got), c.want) {
					t.Errorf("expected %v, got %v", c.want, positions(got))
				}
				if got.TrackCount() != len(c.want) {
					t.Errorf("expected %d tracks, got %d", len(c.want), got.TrackCount())
				}
			})
		}
	})

	t.Run("unknown positions fall back to list order", func(t *testing.T) {
		seed := models.AlbumCombo{Album: models.Album{ID: "a"}, Tracks: []models.TrackCombo{
			{Track: models.Track{ID: "s1", Title: "One"}},
			{Track: models.Track{ID: "s2", Title: "Two"}},
		}}
		other := []models.TrackCombo{
			{Track: models.Track{Title: "One", SpotifyID: "sp1"}},
			{Track: models.Track{Title: "Two", SpotifyID: "sp2"}},
		}
		got, err := NewBuilder(seed).MergeTrackCombos(other, models.KeepLeast, models.ListMerge).Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Tracks) != 2 || got.Tracks[1].Track.SpotifyID != "sp2" || got.Tracks[1].Track.AlbumPosition != 2 {
			t.Errorf("unexpected tracks: %+v", got.Tracks)
		}
	})

	t.Run("tracks sharing a slot are all kept", func(t *testing.T) {
		seed := models.AlbumCombo{Album: models.Album{ID: "a"}, Tracks: []models.TrackCombo{
			{Track: models.Track{ID: "t1", Title: "One", AlbumPosition: 1}},
			{Track: models.Track{ID: "t2", Title: "One (Live)", AlbumPosition: 1}},
			{Track: models.Track{ID: "t3", Title: "Two", AlbumPosition: 2}},
		}}
		ids := func(c models.AlbumCombo) []string {
			var out []string
			for _, tc := range c.Tracks {
				out = append(out, tc.Track.ID)
			}
			return out
		}

		for _, strategy := range []models.TrackMergeStrategy{models.KeepSelf, models.KeepMost} {
			t.Run(strategy.String()+" without other", func(t *testing.T) {
				got, err := NewBuilder(seed).MergeTrackCombos(nil, strategy, models.ListMerge).Build()
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if want := []string{"t1", "t2", "t3"}; !reflect.DeepEqual(ids(got), want) {
					t.Errorf("expected %v, got %v", want, ids(got))
				}
			})
		}

		t.Run("first of the slot is aligned", func(t *testing.T) {
			other := []models.TrackCombo{{Track: models.Track{ID: "x1", Title: "One", AlbumPosition: 1, SpotifyID: "sp1"}}}
			got, err := NewBuilder(seed).MergeTrackCombos(other, models.KeepMost, models.ListMerge).Build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := []string{"t1", "t2", "t3"}; !reflect.DeepEqual(ids(got), want) {
				t.Fatalf("expected %v, got %v", want, ids(got))
			}
			if got.Tracks[0].Track.SpotifyID != "sp1" || got.Tracks[1].Track.SpotifyID != "" {
				t.Errorf("expected only t1 merged, got %+v", got.Tracks)
			}
		})

		t.Run("KeepLeast drops the unaligned one", func(t *testing.T) {
			other := []models.TrackCombo{
				{Track: models.Track{Title: "One", AlbumPosition: 1}},
				{Track: models.Track{Title: "Two", AlbumPosition: 2}},
			}
			got, err := NewBuilder(seed).MergeTrackCombos(other, models.KeepLeast, models.ListMerge).Build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := []string{"t1", "t3"}; !reflect.DeepEqual(ids(got), want) {
				t.Errorf("expected %v, got %v", want, ids(got))
			}
		})
	})

	t.Run("artists MERGE and REPLACE", func(t *testing.T) {
		other := []models.ArtistCredit{
			{Name: "the beatles", Position: 0, SpotifyID: "sp-beatles"},
			{Name: "Billy Preston", Position: 1},
		}

		merged, _ := NewBuilder(seedCombo()).MergeArtists(other, models.ListMerge).Build()
		if len(merged.Artists) != 2 {
			t.Fatalf("expected 2 artists after merge, got %+v", merged.Artists)
		}
		if merged.Artists[0].Name != "The Beatles" || merged.Artists[0].SpotifyID != "sp-beatles" {
			t.Errorf("duplicate credit should be folded into the seed's: %+v", merged.Artists[0])
		}
		if merged.Artists[1].OwnerID != "album-1" {
			t.Errorf("merged credit should be re-keyed to the album, got %q", merged.Artists[1].OwnerID)
		}

		replaced, _ := NewBuilder(seedCombo()).MergeArtists(other[1:], models.ListReplace).Build()
		if len(replaced.Artists) != 1 || replaced.Artists[0].Name != "Billy Preston" {
			t.Errorf("expected replacement, got %+v", replaced.Artists)
		}
	})

	t.Run("tags MERGE and REPLACE", func(t *testing.T) {
		merged, _ := NewBuilder(seedCombo()).MergeTags(otherCombo().Tags, models.ListMerge).Build()
		if want := []string{"rock", "classic rock"}; !reflect.DeepEqual(merged.Tags, want) {
			t.Errorf("expected %v, got %v", want, merged.Tags)
		}

		replaced, _ := NewBuilder(seedCombo()).MergeTags([]string{"jazz"}, models.ListReplace).Build()
		if want := []string{"jazz"}; !reflect.DeepEqual(replaced.Tags, want) {
			t.Errorf("expected %v, got %v", want, replaced.Tags)
		}
	})

	t.Run("merging with itself under REPLACE is idempotent", func(t *testing.T) {
		seed := seedCombo()
		got, err := NewBuilder(seed).
			MergeArtists(seed.Artists, models.ListReplace).
			MergeTags(seed.Tags, models.ListReplace).
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got.Artists, seed.Artists) {
			t.Errorf("artists changed: %+v vs %+v", got.Artists, seed.Artists)
		}
		if !reflect.DeepEqual(got.Tags, seed.Tags) {
			t.Errorf("tags changed: %v vs %v", got.Tags, seed.Tags)
		}
	})

	t.Run("SetIsInLibrary cascades", func(t *testing.T) {
		got, _ := NewBuilder(seedCombo()).
			MergeTrackCombos(otherCombo().Tracks, models.KeepMost, models.ListMerge).
			SetIsInLibrary(true).
			SetAlbumArt("https://img/new.jpg").
			Build()
		if !got.Album.IsInLibrary || got.Album.ArtURL != "https://img/new.jpg" {
			t.Errorf("album setters not applied: %+v", got.Album)
		}
		for _, tc := range got.Tracks {
			if !tc.Track.IsInLibrary {
				t.Errorf("track %s not flagged in library", tc.Track.ID)
			}
		}
	})

	t.Run("seed is not mutated", func(t *testing.T) {
		seed := seedCombo()
		NewBuilder(seed).MergeTrackCombos(otherCombo().Tracks, models.KeepMost, models.ListMerge).SetIsInLibrary(true).Build()
		if seed.Tracks[1].Track.SpotifyID != "" || seed.Tracks[0].Track.IsInLibrary {
			t.Error("builder mutated the caller's combo")
		}
	})

	t.Run("single use", func(t *testing.T) {
		b := NewBuilder(seedCombo())
		if _, err := b.Build(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := b.SetAlbumArt("x").Build(); !errors.Is(err, shared.ErrBuilderConsumed) {
			t.Errorf("expected ErrBuilderConsumed, got %v", err)
		}
	})

	t.Run("invalid strategy is sticky", func(t *testing.T) {
		_, err := NewBuilder(seedCombo()).
			MergeTrackCombos(nil, models.TrackMergeStrategy(42), models.ListMerge).
			MergeAlbum(otherCombo().Album).
			Build()
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
