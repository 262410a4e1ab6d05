// Package radio runs the radio recommendation stream.
//
// A [Manager] owns at most one session. Activating a new radio cancels the previous session and waits for
// its producer to stop before the new one starts, so the used id sets stay consistent.
//
// Each session has two goroutines joined by an unbuffered channel. The producer draws one playable track
// at a time from a recommendation source and blocks until the consumer takes it; the consumer only takes
// when the playback queue is below its low-water marks. Every emitted track's provider ids are appended
// to the persisted [models.RadioState] right after the hand-off, and a track whose id was already used is
// never emitted again.
//
// Sources by radio type:
//   - library: provider recommendations seeded from recently used provider ids, or from a small random
//     sample of library tracks when too few are known yet. Random unseen library tracks follow once the
//     recommendations run dry.
//   - track, album: recommendations seeded from the entity's provider ids. A track that cannot be
//     matched on the provider falls back to library seeding.
//   - artist: recommendations seeded from the provider artist id.
//
// A session that ends before producing anything fails with [shared.ErrNoRecommendations]. Running out
// later is a quiet completion.
package radio
