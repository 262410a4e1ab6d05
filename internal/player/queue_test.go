package player

import (
	"testing"
	"time"

	"github.com/desertthunder/tonearm/internal/models"
)

func track(title string) models.TrackCombo {
	return models.TrackCombo{Track: models.Track{ID: title, Title: title}}
}

func TestQueue(t *testing.T) {
	t.Run("InsertLast starts playback", func(t *testing.T) {
		q := NewQueue(nil)
		if _, ok := q.Current(); ok {
			t.Fatal("empty queue should not be playing")
		}

		q.InsertLast(track("a"), track("b"))
		cur, ok := q.Current()
		if !ok || cur.Track.ID != "a" {
			t.Errorf("expected a to play, got %v", cur.Track.ID)
		}
		if q.TrackCount() != 2 || q.TracksLeft() != 1 {
			t.Errorf("expected 2 total 1 left, got %d and %d", q.TrackCount(), q.TracksLeft())
		}

		q.InsertLast(track("c"))
		if cur, _ := q.Current(); cur.Track.ID != "a" {
			t.Errorf("append should not change the current track, got %s", cur.Track.ID)
		}
		if q.TracksLeft() != 2 {
			t.Errorf("expected 2 left, got %d", q.TracksLeft())
		}
	})

	t.Run("InsertLastAndPlay clears", func(t *testing.T) {
		q := NewQueue(nil)
		q.InsertLast(track("a"), track("b"))
		q.Advance()

		q.InsertLastAndPlay(track("z"))
		cur, ok := q.Current()
		if !ok || cur.Track.ID != "z" {
			t.Errorf("expected z to play, got %v", cur.Track.ID)
		}
		if q.TrackCount() != 1 || q.TracksLeft() != 0 {
			t.Errorf("expected 1 total 0 left, got %d and %d", q.TrackCount(), q.TracksLeft())
		}
	})

	t.Run("Advance", func(t *testing.T) {
		q := NewQueue(nil)
		if _, ok := q.Advance(); ok {
			t.Error("advance on empty queue should fail")
		}

		q.InsertLast(track("a"), track("b"))
		next, ok := q.Advance()
		if !ok || next.Track.ID != "b" {
			t.Errorf("expected b, got %v", next.Track.ID)
		}
		if _, ok := q.Advance(); ok {
			t.Error("advance past the end should fail")
		}
		if _, ok := q.Current(); ok {
			t.Error("nothing should play after the end")
		}
		if q.TracksLeft() != 0 {
			t.Errorf("expected 0 left, got %d", q.TracksLeft())
		}

		q.InsertLast(track("c"))
		if cur, ok := q.Current(); !ok || cur.Track.ID != "c" {
			t.Errorf("expected c to play after append, got %v", cur.Track.ID)
		}
		if q.TracksLeft() != 0 || q.TrackCount() != 3 {
			t.Errorf("expected 3 total 0 left, got %d and %d", q.TrackCount(), q.TracksLeft())
		}
	})

	t.Run("Changed", func(t *testing.T) {
		q := NewQueue(nil)
		ch := q.Changed()

		select {
		case <-ch:
			t.Fatal("channel should not be closed before a change")
		default:
		}

		go q.InsertLast(track("a"))

		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected change notification")
		}

		if q.Changed() == ch {
			t.Error("a fresh channel should follow each change")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		q := NewQueue(nil)
		q.InsertLast(track("a"))
		q.Clear()
		if q.TrackCount() != 0 {
			t.Errorf("expected empty queue, got %d", q.TrackCount())
		}
		if _, ok := q.Current(); ok {
			t.Error("cleared queue should not be playing")
		}
	})
}
