package player

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

// Queue is an ordered play queue with a cursor. The zero cursor -1 means nothing is playing.
type Queue struct {
	mu      sync.Mutex
	tracks  []models.TrackCombo
	current int
	changed chan struct{}
	logger  *log.Logger
}

// NewQueue creates an empty queue.
func NewQueue(logger *log.Logger) *Queue {
	return &Queue{
		current: -1,
		changed: make(chan struct{}),
		logger:  shared.WithLogger(logger, "component", "player"),
	}
}

// InsertLast appends tracks after the last queued track. Playback starts on the first appended
// track if nothing is playing or the queue was played through.
func (q *Queue) InsertLast(tracks ...models.TrackCombo) {
	if len(tracks) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	start := len(q.tracks)
	q.tracks = append(q.tracks, tracks...)
	if q.current < 0 || q.current >= start {
		q.current = start
		q.logger.Debug("playing", "track", q.tracks[q.current].Track.Title)
	}
	q.notify()
}

// InsertLastAndPlay clears the queue, queues tracks and plays the first one.
func (q *Queue) InsertLastAndPlay(tracks ...models.TrackCombo) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append([]models.TrackCombo(nil), tracks...)
	q.current = -1
	if len(q.tracks) > 0 {
		q.current = 0
		q.logger.Debug("playing", "track", q.tracks[0].Track.Title)
	}
	q.notify()
}

// Advance moves to the next track. It reports false once the queue has been played through.
func (q *Queue) Advance() (models.TrackCombo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current < 0 || q.current+1 >= len(q.tracks) {
		if q.current >= 0 {
			q.current = len(q.tracks)
			q.notify()
		}
		return models.TrackCombo{}, false
	}

	q.current++
	q.notify()
	return q.tracks[q.current], true
}

// Current returns the playing track.
func (q *Queue) Current() (models.TrackCombo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current < 0 || q.current >= len(q.tracks) {
		return models.TrackCombo{}, false
	}
	return q.tracks[q.current], true
}

// Tracks returns a copy of the queue.
func (q *Queue) Tracks() []models.TrackCombo {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.TrackCombo(nil), q.tracks...)
}

// Clear empties the queue and stops playback.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = nil
	q.current = -1
	q.notify()
}

// TrackCount is the number of queued tracks, played ones included.
func (q *Queue) TrackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// TracksLeft is the number of tracks after the current one.
func (q *Queue) TracksLeft() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current < 0 {
		return len(q.tracks)
	}
	if left := len(q.tracks) - q.current - 1; left > 0 {
		return left
	}
	return 0
}

// Changed returns a channel closed on the next change to the queue.
func (q *Queue) Changed() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.changed
}

// notify must be called with mu held.
func (q *Queue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}
