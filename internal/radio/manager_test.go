package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/player"
	"github.com/desertthunder/tonearm/internal/repositories"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/desertthunder/tonearm/internal/tasks"
	tu "github.com/desertthunder/tonearm/internal/testing"
)

// sink is a playback that always wants more.
type sink struct {
	mu     sync.Mutex
	tracks []models.TrackCombo
	clears int
}

func (s *sink) InsertLast(tracks ...models.TrackCombo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, tracks...)
}

func (s *sink) InsertLastAndPlay(tracks ...models.TrackCombo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.tracks = append([]models.TrackCombo(nil), tracks...)
}

func (s *sink) TrackCount() int { return 0 }
func (s *sink) TracksLeft() int { return 0 }
func (s *sink) Changed() <-chan struct{} { return make(chan struct{}) }

func (s *sink) snapshot() ([]models.TrackCombo, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TrackCombo(nil), s.tracks...), s.clears
}

// youtubeBatches recommends size new YouTube tracks per call, up to limit distinct ids.
// Consecutive batches overlap by half.
func youtubeBatches(size, limit int) func(models.RecommendationSeeds, int) ([]models.TrackCandidate, error) {
	return func(_ models.RecommendationSeeds, call int) ([]models.TrackCandidate, error) {
		var batch []models.TrackCandidate
		for i := call * size / 2; i < call*size/2+size && i < limit; i++ {
			batch = append(batch, tu.NewTrack(models.ProviderYouTube, fmt.Sprintf("yt-%03d", i), fmt.Sprintf("Song %d", i), "Artist", 200))
		}
		return batch, nil
	}
}

type fixture struct {
	lib    *repositories.LibraryRepository
	state  *repositories.RadioRepository
	engine *tasks.Engine
}

func newFixture(t *testing.T) fixture {
	lib, state := tu.NewLibrary(t)
	return fixture{lib: lib, state: state, engine: tasks.NewEngine(tasks.EngineOpts{Library: lib})}
}

func (f fixture) manager(source Source, playback Playback) *Manager {
	return NewManager(Options{
		Library:  f.lib,
		State:    f.state,
		Resolver: f.engine,
		Source:   source,
		Playback: playback,
	})
}

func waitFor(t *testing.T, m *Manager) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := m.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("radio session did not finish")
	}
	return err
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("never repeats a track across a long session", func(t *testing.T) {
		f := newFixture(t)
		source := &tu.MockProvider{ProviderName: models.ProviderYouTube, Recommend: youtubeBatches(10, 100)}
		out := &sink{}
		m := f.manager(source, out)

		if err := m.Activate(ctx, models.RadioArtist, "artist-1"); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		if err := waitFor(t, m); err != nil {
			t.Fatalf("expected quiet completion, got %v", err)
		}

		tracks, clears := out.snapshot()
		if len(tracks) != 100 {
			t.Fatalf("expected 100 tracks, got %d", len(tracks))
		}
		if clears != 1 {
			t.Errorf("only the first track should clear the queue, got %d clears", clears)
		}
		seen := map[string]bool{}
		for _, tc := range tracks {
			if seen[tc.Track.YoutubeVideoID] {
				t.Fatalf("track %s emitted twice", tc.Track.YoutubeVideoID)
			}
			seen[tc.Track.YoutubeVideoID] = true
		}

		state, err := f.state.LoadRadio(ctx)
		if err != nil {
			t.Fatalf("failed to load state: %v", err)
		}
		if len(state.UsedYoutubeVideoIDs) != len(seen) || len(state.UsedLocalTrackIDs) != len(seen) {
			t.Errorf("expected %d used ids, got %d youtube and %d local",
				len(seen), len(state.UsedYoutubeVideoIDs), len(state.UsedLocalTrackIDs))
		}
		if !state.Initialized {
			t.Error("state should be initialized after emitting")
		}
		if m.Status() != Inactive {
			t.Errorf("expected inactive after completion, got %s", m.Status())
		}
	})

	t.Run("no recommendations on first activation", func(t *testing.T) {
		f := newFixture(t)
		source := &tu.MockProvider{ProviderName: models.ProviderYouTube}
		m := f.manager(source, &sink{})

		if err := m.Activate(ctx, models.RadioArtist, "artist-1"); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		if err := waitFor(t, m); !errors.Is(err, shared.ErrNoRecommendations) {
			t.Errorf("expected ErrNoRecommendations, got %v", err)
		}
		if m.Status() != Inactive {
			t.Errorf("expected inactive, got %s", m.Status())
		}
	})

	t.Run("provider failure abandons the session", func(t *testing.T) {
		f := newFixture(t)
		source := &tu.MockProvider{
			ProviderName: models.ProviderYouTube,
			Recommend: func(models.RecommendationSeeds, int) ([]models.TrackCandidate, error) {
				return nil, shared.ErrServiceUnavailable
			},
		}
		m := f.manager(source, &sink{})

		if err := m.Activate(ctx, models.RadioArtist, "artist-1"); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		if err := waitFor(t, m); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("seeds from a library sample when few ids are known", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.ImportAlbum(ctx, models.AlbumCombo{
			Album:   models.Album{Title: "Local"},
			Artists: []models.ArtistCredit{{Name: "Band"}},
			Tracks: []models.TrackCombo{
				{Track: models.Track{Title: "Foo", AlbumPosition: 1, URI: "file:///m/foo.mp3"}},
				{Track: models.Track{Title: "Bar", AlbumPosition: 2, URI: "file:///m/bar.mp3", SpotifyID: "sp-bar"}},
			},
		})
		if err != nil {
			t.Fatalf("failed to import: %v", err)
		}

		source := &tu.MockProvider{
			ProviderName: models.ProviderSpotify,
			Tracks:       []models.TrackCandidate{tu.NewTrack(models.ProviderSpotify, "sp-foo", "Foo", "Band", 0)},
		}
		out := &sink{}
		m := f.manager(source, out)

		if err := m.Activate(ctx, models.RadioLibrary, ""); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		if err := waitFor(t, m); err != nil {
			t.Fatalf("expected quiet completion, got %v", err)
		}

		seeds := source.Seeds()
		if len(seeds) != 1 {
			t.Fatalf("expected one recommendation request, got %d", len(seeds))
		}
		got := map[string]bool{}
		for _, id := range seeds[0].Tracks {
			got[id] = true
		}
		if len(got) != 2 || !got["sp-foo"] || !got["sp-bar"] {
			t.Errorf("expected seeds sp-foo and sp-bar, got %v", seeds[0].Tracks)
		}

		if _, err := f.lib.TrackByExternalID(ctx, models.ProviderSpotify, "sp-foo"); err != nil {
			t.Errorf("discovered seed id should be persisted: %v", err)
		}

		tracks, _ := out.snapshot()
		if len(tracks) != 2 {
			t.Errorf("expected both library tracks after recommendations ran out, got %d", len(tracks))
		}
	})

	t.Run("seeds from used ids once enough are known", func(t *testing.T) {
		f := newFixture(t)
		used := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
		if err := f.state.SaveRadio(ctx, &models.RadioState{Type: models.RadioLibrary, UsedSpotifyTrackIDs: used, Initialized: true}); err != nil {
			t.Fatalf("failed to save state: %v", err)
		}

		source := &tu.MockProvider{ProviderName: models.ProviderSpotify}
		m := f.manager(source, &sink{})

		if err := m.Resume(ctx); err != nil {
			t.Fatalf("failed to resume: %v", err)
		}
		if err := waitFor(t, m); err != nil {
			t.Errorf("expected a resumed session to end quietly, got %v", err)
		}

		seeds := source.Seeds()
		if len(seeds) != 1 || len(seeds[0].Tracks) != 5 || seeds[0].Tracks[0] != "s2" {
			t.Errorf("expected the last 5 used ids as seeds, got %v", seeds)
		}
		if len(source.Searches()) != 0 {
			t.Error("no library track should be matched")
		}
	})

	t.Run("resumed session with nothing new ends quietly", func(t *testing.T) {
		f := newFixture(t)
		state := &models.RadioState{
			Type:                models.RadioArtist,
			SeedID:              "artist-1",
			UsedYoutubeVideoIDs: []string{"yt-000", "yt-001"},
			Initialized:         true,
		}
		if err := f.state.SaveRadio(ctx, state); err != nil {
			t.Fatalf("failed to save state: %v", err)
		}

		source := &tu.MockProvider{ProviderName: models.ProviderYouTube, Recommend: youtubeBatches(2, 2)}
		out := &sink{}
		m := f.manager(source, out)

		if err := m.Resume(ctx); err != nil {
			t.Fatalf("failed to resume: %v", err)
		}
		if err := waitFor(t, m); err != nil {
			t.Errorf("expected quiet completion, got %v", err)
		}
		if tracks, clears := out.snapshot(); len(tracks) != 0 || clears != 0 {
			t.Errorf("expected the queue untouched, got %d tracks and %d clears", len(tracks), clears)
		}
		if m.Status() != Inactive {
			t.Errorf("expected inactive, got %s", m.Status())
		}
	})

	t.Run("unmatched track seed falls back to the library", func(t *testing.T) {
		f := newFixture(t)
		foo, err := f.engine.ImportTrack(ctx, models.TrackCombo{Track: models.Track{Title: "Foo", URI: "file:///m/foo.mp3"}})
		if err != nil {
			t.Fatalf("failed to import: %v", err)
		}

		source := &tu.MockProvider{ProviderName: models.ProviderSpotify}
		m := f.manager(source, &sink{})

		if err := m.Activate(ctx, models.RadioTrack, foo.Track.ID); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		if err := waitFor(t, m); !errors.Is(err, shared.ErrNoRecommendations) {
			t.Errorf("expected ErrNoRecommendations, got %v", err)
		}
		if n := len(source.Searches()); n != 2 {
			t.Errorf("expected the seed and the library sample to be matched, got %d searches", n)
		}
	})

	t.Run("requires a seed", func(t *testing.T) {
		f := newFixture(t)
		m := f.manager(&tu.MockProvider{}, &sink{})
		if err := m.Activate(ctx, models.RadioTrack, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("fills up to the low-water marks", func(t *testing.T) {
		f := newFixture(t)
		source := &tu.MockProvider{ProviderName: models.ProviderYouTube, Recommend: youtubeBatches(10, 1000)}
		q := player.NewQueue(nil)
		m := f.manager(source, q)

		if err := m.Activate(ctx, models.RadioArtist, "artist-1"); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		tu.Eventually(t, 5*time.Second, func() bool {
			return q.TrackCount() == 20 && m.Status() == Loaded
		}, "expected 20 queued tracks, got %d (%s)", q.TrackCount(), m.Status())

		time.Sleep(50 * time.Millisecond)
		if q.TrackCount() != 20 {
			t.Fatalf("radio should idle above the marks, got %d tracks", q.TrackCount())
		}

		for i := 0; i < 15; i++ {
			q.Advance()
		}
		tu.Eventually(t, 5*time.Second, func() bool {
			return q.TrackCount() == 21 && q.TracksLeft() == 5 && m.Status() == Loaded
		}, "expected one more track, got %d total %d left", q.TrackCount(), q.TracksLeft())

		if err := m.Deactivate(ctx); err != nil {
			t.Fatalf("failed to deactivate: %v", err)
		}
		if m.Status() != Inactive {
			t.Errorf("expected inactive, got %s", m.Status())
		}
		if _, err := f.state.LoadRadio(ctx); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("deactivation should clear the state, got %v", err)
		}
	})

	t.Run("replacing a session wipes used ids", func(t *testing.T) {
		f := newFixture(t)
		source := &tu.MockProvider{ProviderName: models.ProviderYouTube, Recommend: youtubeBatches(10, 1000)}
		q := player.NewQueue(nil)
		m := f.manager(source, q)

		if err := m.Activate(ctx, models.RadioArtist, "a1"); err != nil {
			t.Fatalf("failed to activate: %v", err)
		}
		tu.Eventually(t, 5*time.Second, func() bool { return m.Status() == Loaded }, "first session did not load")
		first, _ := q.Current()

		if err := m.Activate(ctx, models.RadioArtist, "a2"); err != nil {
			t.Fatalf("failed to replace: %v", err)
		}
		tu.Eventually(t, 5*time.Second, func() bool {
			state, err := f.state.LoadRadio(ctx)
			return err == nil && m.Status() == Loaded && len(state.UsedYoutubeVideoIDs) == 20
		}, "second session did not load")

		state, _ := f.state.LoadRadio(ctx)
		if state.SeedID != "a2" {
			t.Errorf("expected seed a2, got %s", state.SeedID)
		}
		if cur, _ := q.Current(); cur.Track.ID == first.Track.ID {
			t.Error("the new session should clear the queue and play its own first track")
		}
		m.Stop()
	})
}
