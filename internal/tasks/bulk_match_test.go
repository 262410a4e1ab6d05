package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
	tu "github.com/desertthunder/tonearm/internal/testing"
)

func TestBulkMatch(t *testing.T) {
	ctx := context.Background()

	importAll := func(t *testing.T, e *Engine, combos ...models.AlbumCombo) []string {
		t.Helper()
		ids := make([]string, 0, len(combos))
		for _, c := range combos {
			imported, err := e.ImportAlbum(ctx, c)
			if err != nil {
				t.Fatalf("failed to import: %v", err)
			}
			ids = append(ids, imported.Album.ID)
		}
		return ids
	}

	t.Run("counts matched and unmatched albums", func(t *testing.T) {
		lib, _ := tu.NewLibrary(t)
		e := NewEngine(EngineOpts{Library: lib})

		steps := models.AlbumCombo{
			Album:   models.Album{Title: "Giant Steps"},
			Artists: []models.ArtistCredit{{Name: "John Coltrane"}},
		}
		unknown := models.AlbumCombo{
			Album:   models.Album{Title: "Completely Different Record"},
			Artists: []models.ArtistCredit{{Name: "Somebody Else"}},
		}
		ids := importAll(t, e, localAlbum(), steps, unknown)
		ids = append(ids, "missing-album")

		progress := make(chan ProgressUpdate, 20)
		result, err := e.BulkMatch(ctx, progress, spotifyProvider(), ids, BulkMatchOpts{NumWorkers: 2, Merge: DefaultMergeOptions})
		if err != nil {
			t.Fatalf("bulk match failed: %v", err)
		}

		if result.Total != 4 || result.Matched != 2 || result.Unmatched != 1 || result.Failed != 1 {
			t.Errorf("unexpected counts %+v", result)
		}
		if len(result.Results) != 4 {
			t.Errorf("expected 4 results, got %d", len(result.Results))
		}
		for _, res := range result.Results {
			if res.AlbumID == "missing-album" && !errors.Is(res.Error, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound for the missing album, got %v", res.Error)
			}
		}

		first := <-progress
		if first.Phase != LoadLibrary || first.Total != 4 {
			t.Errorf("unexpected first update %+v", first)
		}
		if len(progress) != 4 {
			t.Errorf("expected 4 album updates, got %d", len(progress))
		}

		stored, err := lib.AlbumCombo(ctx, ids[1])
		if err != nil || stored.Album.SpotifyID != "sp-steps" {
			t.Errorf("expected the match to be saved, got %+v (%v)", stored.Album, err)
		}
	})

	t.Run("nil provider", func(t *testing.T) {
		lib, _ := tu.NewLibrary(t)
		e := NewEngine(EngineOpts{Library: lib})
		if _, err := e.BulkMatch(ctx, nil, nil, []string{"a"}, BulkMatchOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		lib, _ := tu.NewLibrary(t)
		e := NewEngine(EngineOpts{Library: lib})
		ids := importAll(t, e, localAlbum())

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		result, err := e.BulkMatch(cctx, nil, spotifyProvider(), ids, BulkMatchOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if result == nil {
			t.Fatal("a partial result should be returned")
		}
	})
}
