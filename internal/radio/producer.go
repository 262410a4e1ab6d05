package radio

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
)

// libraryBatchSize is how many random library tracks are drawn at a time.
const libraryBatchSize = 10

// producer draws playable tracks and hands them to the consumer one at a time.
type producer struct {
	opts   Options
	state  *models.RadioState
	items  chan<- item
	logger *log.Logger

	used     map[models.Provider]map[string]bool
	produced int
}

// next returns the next candidate track with the ids it should be recorded under.
type next func(ctx context.Context) (models.TrackCombo, map[models.Provider]string, error)

func (p *producer) run(ctx context.Context) error {
	p.used = map[models.Provider]map[string]bool{}
	for _, prov := range []models.Provider{models.ProviderSpotify, models.ProviderYouTube, models.ProviderLocal} {
		set := map[string]bool{}
		for _, id := range p.state.UsedIDs(prov) {
			set[id] = true
		}
		p.used[prov] = set
	}

	sources, err := p.sources(ctx)
	if err != nil {
		return err
	}

	resumed := p.state.Initialized
	first := !resumed
	for _, draw := range sources {
		for {
			tc, ids, err := draw(ctx)
			if errors.Is(err, shared.ErrExhausted) {
				break
			}
			if err != nil {
				return err
			}
			if p.seen(ids) {
				continue
			}

			select {
			case p.items <- item{track: tc, ids: ids, clear: first}:
			case <-ctx.Done():
				return ctx.Err()
			}
			first = false
			p.produced++

			p.markUsed(ids)
			if err := p.opts.State.AppendUsed(ctx, ids); err != nil {
				return err
			}
		}
	}

	// A resumed session that finds nothing new has run its course.
	if p.produced == 0 && !resumed {
		return shared.ErrNoRecommendations
	}
	return nil
}

func (p *producer) seen(ids map[models.Provider]string) bool {
	for prov, id := range ids {
		if id != "" && p.used[prov][id] {
			return true
		}
	}
	return false
}

func (p *producer) markUsed(ids map[models.Provider]string) {
	for prov, id := range ids {
		if set, ok := p.used[prov]; ok && id != "" {
			set[id] = true
		}
	}
}

func (p *producer) usedList(prov models.Provider) []string {
	ids := make([]string, 0, len(p.used[prov]))
	for id := range p.used[prov] {
		ids = append(ids, id)
	}
	return ids
}

// sources picks what the session plays, in order.
func (p *producer) sources(ctx context.Context) ([]next, error) {
	if p.opts.Source == nil {
		return []next{p.libraryTracks()}, nil
	}

	var (
		seeds models.RecommendationSeeds
		err   error
	)
	switch p.state.Type {
	case models.RadioLibrary:
		seeds, err = p.librarySeeds(ctx)
	case models.RadioTrack:
		seeds, err = p.trackSeeds(ctx)
	case models.RadioAlbum:
		seeds, err = p.albumSeeds(ctx)
	case models.RadioArtist:
		seeds = models.RecommendationSeeds{Artists: []string{p.state.SeedID}}
	default:
		return nil, fmt.Errorf("%w: radio type %q", shared.ErrInvalidArgument, p.state.Type)
	}
	if err != nil {
		return nil, err
	}

	var sources []next
	if !seeds.Empty() {
		sources = append(sources, p.recommendations(ctx, seeds))
	}
	if p.state.Type == models.RadioLibrary {
		sources = append(sources, p.libraryTracks())
	}
	return sources, nil
}

// librarySeeds uses the most recent provider ids once enough are known, else a random library sample.
func (p *producer) librarySeeds(ctx context.Context) (models.RecommendationSeeds, error) {
	used := p.state.UsedIDs(p.opts.Source.Name())
	if n := p.opts.SeedSampleSize; len(used) >= n {
		return models.RecommendationSeeds{Tracks: append([]string(nil), used[len(used)-n:]...)}, nil
	}

	sample, err := p.opts.Library.RandomTracks(ctx, p.opts.SeedSampleSize, nil)
	if err != nil {
		return models.RecommendationSeeds{}, err
	}

	var seeds models.RecommendationSeeds
	for _, tc := range sample {
		id, err := p.opts.Resolver.EnsureProviderTrackID(ctx, p.opts.Source, tc)
		if err != nil {
			if shared.IsCancellation(err) {
				return seeds, err
			}
			p.logger.Debug("seed track not matched", "track", tc.Track.Title, "err", err)
			continue
		}
		seeds.Tracks = append(seeds.Tracks, id)
	}
	p.logger.Debug("seeded from library", "sampled", len(sample), "seeds", len(seeds.Tracks))
	return seeds, nil
}

func (p *producer) trackSeeds(ctx context.Context) (models.RecommendationSeeds, error) {
	tc, err := p.opts.Library.TrackCombo(ctx, p.state.SeedID)
	if err != nil {
		return models.RecommendationSeeds{}, err
	}

	id, err := p.opts.Resolver.EnsureProviderTrackID(ctx, p.opts.Source, tc)
	switch {
	case err == nil:
		return models.RecommendationSeeds{Tracks: []string{id}}, nil
	case errors.Is(err, shared.ErrNoMatch):
		p.logger.Debug("seed track not matched, seeding from library", "track", tc.Track.Title)
		return p.librarySeeds(ctx)
	default:
		return models.RecommendationSeeds{}, err
	}
}

func (p *producer) albumSeeds(ctx context.Context) (models.RecommendationSeeds, error) {
	combo, err := p.opts.Library.AlbumCombo(ctx, p.state.SeedID)
	if err != nil {
		return models.RecommendationSeeds{}, err
	}
	if id := combo.Album.ExternalID(p.opts.Source.Name()); id != "" {
		return models.RecommendationSeeds{Albums: []string{id}}, nil
	}

	var seeds models.RecommendationSeeds
	for _, tc := range combo.Tracks {
		if len(seeds.Tracks) >= p.opts.SeedSampleSize {
			break
		}
		id, err := p.opts.Resolver.EnsureProviderTrackID(ctx, p.opts.Source, tc)
		if err != nil {
			if shared.IsCancellation(err) {
				return seeds, err
			}
			continue
		}
		seeds.Tracks = append(seeds.Tracks, id)
	}
	return seeds, nil
}

// recommendations draws from the source's stream. Candidates that cannot be made playable are skipped.
func (p *producer) recommendations(ctx context.Context, seeds models.RecommendationSeeds) next {
	stream := p.opts.Source.TrackRecommendations(ctx, seeds)
	stream.Exclude(p.usedList(p.opts.Source.Name())...)

	return func(ctx context.Context) (models.TrackCombo, map[models.Provider]string, error) {
		for {
			candidate, err := stream.Next(ctx)
			if err != nil {
				return models.TrackCombo{}, nil, err
			}

			tc, err := p.opts.Resolver.ResolvePlayable(ctx, candidate)
			if errors.Is(err, shared.ErrNoMatch) {
				p.logger.Debug("skipping unplayable recommendation", "id", candidate.CandidateID())
				continue
			}
			if err != nil {
				return tc, nil, err
			}

			ids := trackIDs(tc)
			ids[candidate.Provider()] = candidate.CandidateID()
			return tc, ids, nil
		}
	}
}

// libraryTracks draws random unseen playable library tracks.
func (p *producer) libraryTracks() next {
	var batch []models.TrackCombo
	skipped := map[string]bool{}

	return func(ctx context.Context) (models.TrackCombo, map[models.Provider]string, error) {
		for {
			if len(batch) == 0 {
				exclude := p.usedList(models.ProviderLocal)
				for id := range skipped {
					exclude = append(exclude, id)
				}

				var err error
				batch, err = p.opts.Library.RandomTracks(ctx, libraryBatchSize, exclude)
				if err != nil {
					return models.TrackCombo{}, nil, err
				}
				if len(batch) == 0 {
					return models.TrackCombo{}, nil, shared.ErrExhausted
				}
			}

			tc := batch[0]
			batch = batch[1:]
			ids := trackIDs(tc)
			if !tc.Track.IsPlayable() || p.seen(ids) {
				skipped[tc.Track.ID] = true
				continue
			}
			return tc, ids, nil
		}
	}
}

// trackIDs returns the ids a library track is recorded under.
func trackIDs(tc models.TrackCombo) map[models.Provider]string {
	ids := map[models.Provider]string{models.ProviderLocal: tc.Track.ID}
	if tc.Track.SpotifyID != "" {
		ids[models.ProviderSpotify] = tc.Track.SpotifyID
	}
	if tc.Track.YoutubeVideoID != "" {
		ids[models.ProviderYouTube] = tc.Track.YoutubeVideoID
	}
	return ids
}
