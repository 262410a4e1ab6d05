// Package tasks reconciles the local library with external providers.
//
// # Core Operations
//
// [Engine] wraps the matcher, the merge builder and the library:
//
//  1. [Engine.MatchAlbumWithTracks] : search a provider, pick the closest album within a distance,
//     fetch its full track list and merge it into the local record
//  2. [Engine.MatchLibraryAlbum] / [Engine.BulkMatch] : the same for stored albums, one at a time or
//     through a worker pool at low rate limiter priority
//  3. [Engine.ImportAlbum] / [Engine.ImportLocalFiles] : add records to the library
//  4. [Engine.EnsureProviderTrackID] : lazily discover and persist a track's id on a provider
//  5. [Engine.ResolvePlayable] : turn a recommendation into a playable library track
//
// A failed or absent match never aborts a run. It is reported as [shared.ErrNoMatch] and the local
// record is left as it was.
//
// # Progress Reporting
//
// Long operations send [ProgressUpdate] values on an optional channel. Updates use select with default
// so a slow reader never blocks the work.
package tasks
