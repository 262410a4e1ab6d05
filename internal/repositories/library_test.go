package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

func testCombo() models.AlbumCombo {
	return models.AlbumCombo{
		Album:   models.Album{Title: "Kind of Blue", Year: 1959, SpotifyID: "sp-album", IsInLibrary: true},
		Artists: []models.ArtistCredit{{Position: 0, Name: "Miles Davis", SpotifyID: "sp-miles"}},
		Tags:    []string{"jazz", "modal"},
		Tracks: []models.TrackCombo{
			{
				Track:   models.Track{Title: "So What", DiscNumber: 1, AlbumPosition: 1, DurationMs: 562000, IsInLibrary: true},
				Artists: []models.ArtistCredit{{Position: 0, Name: "Miles Davis"}},
			},
			{
				Track:   models.Track{Title: "Freddie Freeloader", DiscNumber: 1, AlbumPosition: 2, DurationMs: 589000, IsInLibrary: true},
				Artists: []models.ArtistCredit{{Position: 0, Name: "Miles Davis"}, {Position: 1, Name: "Wynton Kelly", JoinPhrase: " & "}},
			},
		},
	}
}

func TestLibraryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveAlbumCombo", func(t *testing.T) {
		t.Run("assigns ids and round trips", func(t *testing.T) {
			repo := NewLibraryRepository(setupTestDB(t), nil)
			combo := testCombo()

			if err := repo.SaveAlbumCombo(ctx, &combo); err != nil {
				t.Fatalf("failed to save combo: %v", err)
			}
			if combo.Album.ID == "" {
				t.Fatal("album ID should be set after save")
			}
			for _, tc := range combo.Tracks {
				if tc.Track.ID == "" {
					t.Fatal("track ID should be set after save")
				}
				if tc.Track.AlbumID != combo.Album.ID {
					t.Errorf("expected album ID %s, got %s", combo.Album.ID, tc.Track.AlbumID)
				}
			}

			got, err := repo.AlbumCombo(ctx, combo.Album.ID)
			if err != nil {
				t.Fatalf("failed to load combo: %v", err)
			}
			if got.Album.Title != "Kind of Blue" || got.Album.Year != 1959 || !got.Album.IsInLibrary {
				t.Errorf("unexpected album %+v", got.Album)
			}
			if len(got.Tags) != 2 || got.Tags[0] != "jazz" {
				t.Errorf("unexpected tags %v", got.Tags)
			}
			if len(got.Artists) != 1 || got.Artists[0].SpotifyID != "sp-miles" || got.Artists[0].OwnerID != combo.Album.ID {
				t.Errorf("unexpected album artists %+v", got.Artists)
			}
			if len(got.Tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(got.Tracks))
			}
			if got.Tracks[0].Track.Title != "So What" || got.Tracks[1].Track.Title != "Freddie Freeloader" {
				t.Errorf("tracks out of order: %s, %s", got.Tracks[0].Track.Title, got.Tracks[1].Track.Title)
			}
			if len(got.Tracks[1].Artists) != 2 || got.Tracks[1].Artists[1].JoinPhrase != " & " {
				t.Errorf("unexpected track artists %+v", got.Tracks[1].Artists)
			}
			if got.Tracks[0].Album == nil || got.Tracks[0].Album.ID != combo.Album.ID {
				t.Error("track combo should reference its album")
			}
		})

		t.Run("removes tracks dropped from the list", func(t *testing.T) {
			repo := NewLibraryRepository(setupTestDB(t), nil)
			combo := testCombo()
			if err := repo.SaveAlbumCombo(ctx, &combo); err != nil {
				t.Fatalf("failed to save combo: %v", err)
			}
			removed := combo.Tracks[1].Track.ID

			combo.Tracks = combo.Tracks[:1]
			combo.Tags = []string{"jazz"}
			if err := repo.SaveAlbumCombo(ctx, &combo); err != nil {
				t.Fatalf("failed to resave combo: %v", err)
			}

			got, err := repo.AlbumCombo(ctx, combo.Album.ID)
			if err != nil {
				t.Fatalf("failed to load combo: %v", err)
			}
			if len(got.Tracks) != 1 || len(got.Tags) != 1 {
				t.Errorf("expected 1 track and 1 tag, got %d and %d", len(got.Tracks), len(got.Tags))
			}
			if _, err := repo.Track(ctx, removed); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected removed track to be gone, got %v", err)
			}
		})

		t.Run("rolls back on failure", func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewLibraryRepository(db, nil)
			combo := testCombo()

			boom := errors.New("boom")
			err := repo.WithTx(ctx, func(tx *LibraryRepository) error {
				if err := tx.UpsertAlbum(ctx, &combo.Album); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			if _, err := repo.Album(ctx, combo.Album.ID); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("album should not be persisted, got %v", err)
			}
		})
	})

	t.Run("TrackCombo", func(t *testing.T) {
		repo := NewLibraryRepository(setupTestDB(t), nil)

		t.Run("loose track has no album", func(t *testing.T) {
			tc := models.TrackCombo{
				Track:   models.Track{Title: "Loose", URI: "file:///music/loose.mp3", IsInLibrary: true},
				Artists: []models.ArtistCredit{{Name: "Nobody"}},
			}
			if err := repo.SaveTrackCombo(ctx, &tc); err != nil {
				t.Fatalf("failed to save track: %v", err)
			}

			got, err := repo.TrackCombo(ctx, tc.Track.ID)
			if err != nil {
				t.Fatalf("failed to load track: %v", err)
			}
			if got.Album != nil || got.Track.AlbumID != "" {
				t.Errorf("expected no album, got %+v", got.Album)
			}
			if len(got.Artists) != 1 || got.Artists[0].Name != "Nobody" {
				t.Errorf("unexpected artists %+v", got.Artists)
			}
		})

		t.Run("missing track", func(t *testing.T) {
			if _, err := repo.TrackCombo(ctx, "nope"); !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("ExternalID", func(t *testing.T) {
		repo := NewLibraryRepository(setupTestDB(t), nil)
		combo := testCombo()
		if err := repo.SaveAlbumCombo(ctx, &combo); err != nil {
			t.Fatalf("failed to save combo: %v", err)
		}
		trackID := combo.Tracks[0].Track.ID

		if err := repo.SetTrackExternalID(ctx, trackID, models.ProviderYouTube, "yt-123"); err != nil {
			t.Fatalf("failed to set external id: %v", err)
		}

		got, err := repo.TrackByExternalID(ctx, models.ProviderYouTube, "yt-123")
		if err != nil {
			t.Fatalf("failed to find track: %v", err)
		}
		if got.Track.ID != trackID || got.Album == nil {
			t.Errorf("unexpected track %+v", got.Track)
		}

		album, err := repo.AlbumByExternalID(ctx, models.ProviderSpotify, "sp-album")
		if err != nil || album.ID != combo.Album.ID {
			t.Errorf("expected album %s, got %s (%v)", combo.Album.ID, album.ID, err)
		}
		if _, err := repo.AlbumByExternalID(ctx, models.ProviderLocal, "x"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for local albums, got %v", err)
		}

		if _, err := repo.TrackByExternalID(ctx, models.ProviderSpotify, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.SetTrackExternalID(ctx, "nope", models.ProviderSpotify, "x"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing track, got %v", err)
		}
		if err := repo.SetTrackExternalID(ctx, trackID, models.Provider("tidal"), "x"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("RandomTracks", func(t *testing.T) {
		repo := NewLibraryRepository(setupTestDB(t), nil)
		combo := testCombo()
		combo.Tracks = append(combo.Tracks, models.TrackCombo{
			Track: models.Track{Title: "Not Owned", AlbumPosition: 3, IsInLibrary: false},
		})
		if err := repo.SaveAlbumCombo(ctx, &combo); err != nil {
			t.Fatalf("failed to save combo: %v", err)
		}

		got, err := repo.RandomTracks(ctx, 10, nil)
		if err != nil {
			t.Fatalf("failed to sample: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 in-library tracks, got %d", len(got))
		}

		got, err = repo.RandomTracks(ctx, 10, []string{combo.Tracks[0].Track.ID})
		if err != nil {
			t.Fatalf("failed to sample: %v", err)
		}
		if len(got) != 1 || got[0].Track.ID != combo.Tracks[1].Track.ID {
			t.Errorf("expected only the second track, got %+v", got)
		}

		if got, _ := repo.RandomTracks(ctx, 0, nil); got != nil {
			t.Errorf("expected nil for n=0, got %v", got)
		}
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		repo := NewLibraryRepository(setupTestDB(t), nil)
		combo := testCombo()
		if err := repo.SaveAlbumCombo(ctx, &combo); err != nil {
			t.Fatalf("failed to save combo: %v", err)
		}

		ids, err := repo.ListAlbumIDs(ctx)
		if err != nil || len(ids) != 1 || ids[0] != combo.Album.ID {
			t.Fatalf("unexpected ids %v (%v)", ids, err)
		}
		if n, err := repo.CountTracks(ctx); err != nil || n != 2 {
			t.Errorf("expected 2 tracks, got %d (%v)", n, err)
		}

		if err := repo.DeleteAlbum(ctx, combo.Album.ID); err != nil {
			t.Fatalf("failed to delete album: %v", err)
		}
		if n, _ := repo.CountTracks(ctx); n != 0 {
			t.Errorf("expected tracks to cascade, got %d", n)
		}
		if err := repo.DeleteAlbum(ctx, combo.Album.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
