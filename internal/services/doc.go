// Package services implements the provider repositories for Spotify, MusicBrainz and YouTube Music, plus local files.
//
// # Provider Interface
//
// All external providers implement [Provider], so matching and merging work the same way against any of them.
// Providers that can recommend tracks also implement [Recommender].
//
// # Request Path
//
// Every provider owns one [Requester]. A request URL is the key of a [cache.Cache]; on a miss the cache submits one job
// to the provider's [ratelimit.Limiter], which applies that provider's throttle before calling out over HTTP:
//   - Spotify: at most N requests per rolling window ([ratelimit.Window]), client credentials via [clientcredentials]
//   - MusicBrainz: one request per interval ([ratelimit.MinInterval]), User-Agent header required by the service
//   - YouTube Music: token bucket ([ratelimit.TokenBucket]) against the FastAPI proxy wrapping ytmusicapi
//
// A 404 is cached as a null value and surfaces as [shared.ErrNotFound]; other failures are never cached.
//
// # Candidates
//
// Search results are provider-native types ([SpotifyAlbum], [MusicBrainzRelease], [YouTubeTrack], [LocalFile], ...)
// that convert themselves into [models.AlbumCombo] or [models.TrackCombo].
//
// # Recommendations
//
// [RecommendationStream] turns repeated batch requests into a stream of unique tracks. A batch that brings nothing new
// exhausts the stream. MusicBrainz does not recommend.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrMissingCredentials] : Spotify client id or secret not configured
//   - [shared.ErrNotFound] : unknown id (HTTP 404)
//   - [shared.ErrRateLimited] : HTTP 429 after the limiter's back-off
//   - [shared.ErrAPIRequest] : transport failure, unexpected status, or undecodable body
//   - [shared.ErrExhausted] : recommendation stream has nothing left
package services
