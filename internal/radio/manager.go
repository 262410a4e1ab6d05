package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
)

const (
	DefaultLowWaterTotal     = 20
	DefaultLowWaterRemaining = 5
	DefaultSeedSampleSize    = 5
)

// Status is the state of the radio.
type Status int

const (
	Inactive Status = iota
	Loading
	Loaded
	LoadingMore
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadingMore:
		return "loading_more"
	default:
		return ""
	}
}

// Library is the read side of the music library.
type Library interface {
	TrackCombo(ctx context.Context, id string) (models.TrackCombo, error)
	AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error)
	RandomTracks(ctx context.Context, n int, exclude []string) ([]models.TrackCombo, error)
}

// StateStore persists the active session.
type StateStore interface {
	LoadRadio(ctx context.Context) (*models.RadioState, error)
	SaveRadio(ctx context.Context, state *models.RadioState) error
	AppendUsed(ctx context.Context, ids map[models.Provider]string) error
	ClearRadio(ctx context.Context) error
}

// Resolver maps provider data onto the library. [tasks.Engine] implements it.
type Resolver interface {
	ResolvePlayable(ctx context.Context, candidate models.TrackCandidate) (models.TrackCombo, error)
	EnsureProviderTrackID(ctx context.Context, p services.Provider, combo models.TrackCombo) (string, error)
}

// Source is a provider that can also recommend.
type Source interface {
	services.Provider
	services.Recommender
}

// Playback is the queue the radio fills. [player.Queue] implements it.
type Playback interface {
	InsertLast(tracks ...models.TrackCombo)
	InsertLastAndPlay(tracks ...models.TrackCombo)
	TrackCount() int
	TracksLeft() int
	Changed() <-chan struct{}
}

// Options configures a [Manager]. Source may be nil, in which case only library tracks are played.
type Options struct {
	Library           Library
	State             StateStore
	Resolver          Resolver
	Source            Source
	Playback          Playback
	LowWaterTotal     int
	LowWaterRemaining int
	SeedSampleSize    int
	Logger            *log.Logger
}

// Manager owns the active radio session.
type Manager struct {
	opts   Options
	logger *log.Logger

	// lifecycle serializes Activate, Resume, Deactivate and Stop.
	lifecycle sync.Mutex

	mu      sync.Mutex
	status  Status
	session *session
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewManager creates an inactive Manager.
func NewManager(opts Options) *Manager {
	if opts.LowWaterTotal <= 0 {
		opts.LowWaterTotal = DefaultLowWaterTotal
	}
	if opts.LowWaterRemaining <= 0 {
		opts.LowWaterRemaining = DefaultLowWaterRemaining
	}
	if opts.SeedSampleSize <= 0 {
		opts.SeedSampleSize = DefaultSeedSampleSize
	}
	return &Manager{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "radio")}
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s *session, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s || m.status == status {
		return
	}
	m.status = status
	m.logger.Info("radio status", "status", status)
}

// Activate replaces any running session with a new radio of type t seeded from seedID.
// The previous session's used ids are discarded. The session runs until ctx is done, it is replaced,
// or its source runs out.
func (m *Manager) Activate(ctx context.Context, t models.RadioType, seedID string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if t != models.RadioLibrary && seedID == "" {
		return fmt.Errorf("%w: %s radio needs a seed", shared.ErrMissingArgument, t)
	}

	m.stop()

	state := &models.RadioState{Type: t, SeedID: seedID}
	if err := m.opts.State.SaveRadio(ctx, state); err != nil {
		return err
	}

	m.start(ctx, state)
	return nil
}

// Resume restarts the saved session with its used ids. Fails with [shared.ErrNotFound] when there is none.
func (m *Manager) Resume(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.stop()

	state, err := m.opts.State.LoadRadio(ctx)
	if err != nil {
		return err
	}

	m.start(ctx, state)
	return nil
}

// Deactivate stops the session and forgets it.
func (m *Manager) Deactivate(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.stop()
	return m.opts.State.ClearRadio(ctx)
}

// Stop stops the session and keeps its saved state so it can be resumed.
func (m *Manager) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stop()
}

// Wait blocks until the current session ends and returns why it ended. A nil error means the source
// ran out after producing, or that the session was stopped.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop cancels the running session and waits for it. Must be called with lifecycle held.
func (m *Manager) stop() {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	<-s.done

	m.mu.Lock()
	if m.session == s {
		m.status = Inactive
	}
	m.mu.Unlock()
}

func (m *Manager) start(ctx context.Context, state *models.RadioState) {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	m.setStatus(s, Loading)

	logger := m.logger.With("type", state.Type, "seed", state.SeedID)
	logger.Info("radio activated")

	go func() {
		defer close(s.done)
		defer cancel()

		s.err = m.run(ctx, s, state, logger)
		switch {
		case s.err == nil:
			logger.Info("radio finished")
		case shared.IsCancellation(s.err):
			s.err = nil
		case errors.Is(s.err, shared.ErrNoRecommendations):
			logger.Warn("no recommendations found")
		default:
			logger.Error("radio stopped", "err", s.err)
		}
		m.setStatus(s, Inactive)
	}()
}

type item struct {
	track models.TrackCombo
	ids   map[models.Provider]string
	clear bool
}

// run is the consumer side. It takes items from the producer while playback is below the low-water marks.
func (m *Manager) run(ctx context.Context, s *session, state *models.RadioState, logger *log.Logger) error {
	prodCtx, cancelProducer := context.WithCancel(ctx)
	items := make(chan item)
	produced := make(chan error, 1)

	p := &producer{
		opts:   m.opts,
		state:  state,
		items:  items,
		logger: logger,
	}
	go func() {
		produced <- p.run(prodCtx)
		close(items)
	}()
	defer func() {
		cancelProducer()
		for range items {
		}
	}()

	received := 0
	for {
		changed := m.opts.Playback.Changed()
		if !m.needsMore() {
			m.setStatus(s, Loaded)
			select {
			case <-changed:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if received > 0 {
			m.setStatus(s, LoadingMore)
		}
		select {
		case it, ok := <-items:
			if !ok {
				return <-produced
			}
			if it.clear {
				m.opts.Playback.InsertLastAndPlay(it.track)
			} else {
				m.opts.Playback.InsertLast(it.track)
			}
			received++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) needsMore() bool {
	return m.opts.Playback.TrackCount() < m.opts.LowWaterTotal ||
		m.opts.Playback.TracksLeft() < m.opts.LowWaterRemaining
}
