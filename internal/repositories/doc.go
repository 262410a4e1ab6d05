// Package repositories implements SQLite persistence for the music library and radio state.
//
// Queries go through sqlx so rows scan straight into the db-tagged model structs.
//
// Key Implementations:
//   - [LibraryRepository] : Albums, tracks, artist credits and tags. Multi-step writes such as
//     [LibraryRepository.SaveAlbumCombo] share one transaction via [LibraryRepository.WithTx].
//   - [RadioRepository] : The single active radio session with its used id sets stored as JSON arrays.
//
// Lookups that find nothing fail with [shared.ErrNotFound].
package repositories
