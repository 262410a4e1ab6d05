// Package models defines the canonical library entities and the transient types the reconciliation engine passes around.
//
// The package contains three categories of types:
//
// 1. Persistent records: rows the library keeps
//   - [Album] : album metadata with one nullable external id per provider
//   - [Track] : track metadata, optionally owned by an album
//   - [ArtistCredit] : ordered artist credit with a join phrase
//   - [RadioState] : the single active radio session
//
// 2. Combos: records joined with their credits
//   - [AlbumCombo] : album, artists, tags and tracks
//   - [TrackCombo] : track, its album (if any) and artists
//
// 3. Candidates: provider-returned values that are never persisted
//   - [AlbumCandidate] and [TrackCandidate] convert themselves into combos
//
// Nullable columns are modeled with zero values: an empty string is a missing id and a zero duration or year is unknown.
package models
