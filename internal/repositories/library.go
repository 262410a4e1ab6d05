package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/jmoiron/sqlx"
)

const albumColumns = `id, title, year, album_type, art_url, spotify_id, musicbrainz_release_id,
	musicbrainz_release_group_id, youtube_playlist_id, is_local, is_in_library, is_hidden, created_at, updated_at`

const trackColumns = `id, COALESCE(album_id, '') AS album_id, title, disc_number, album_position, duration_ms, uri,
	spotify_id, musicbrainz_recording_id, youtube_video_id, metadata, image_url, is_in_library, created_at, updated_at`

// trackIDColumns maps a provider to the tracks column holding its id.
var trackIDColumns = map[models.Provider]string{
	models.ProviderSpotify:     "spotify_id",
	models.ProviderMusicBrainz: "musicbrainz_recording_id",
	models.ProviderYouTube:     "youtube_video_id",
	models.ProviderLocal:       "uri",
}

// albumIDColumns maps a provider to the albums column holding its id.
var albumIDColumns = map[models.Provider]string{
	models.ProviderSpotify:     "spotify_id",
	models.ProviderMusicBrainz: "musicbrainz_release_id",
	models.ProviderYouTube:     "youtube_playlist_id",
}

// LibraryRepository persists albums, tracks, artist credits and tags.
//
// A repository returned by [LibraryRepository.WithTx] runs every call inside the same transaction.
type LibraryRepository struct {
	db     *sqlx.DB
	ext    sqlx.ExtContext
	logger *log.Logger
}

// NewLibraryRepository creates a new LibraryRepository with the given database connection
func NewLibraryRepository(db *sqlx.DB, logger *log.Logger) *LibraryRepository {
	return &LibraryRepository{db: db, ext: db, logger: shared.WithLogger(logger, "component", "library")}
}

// WithTx runs fn against a repository bound to one transaction. The transaction commits when fn returns nil.
func (r *LibraryRepository) WithTx(ctx context.Context, fn func(repo *LibraryRepository) error) error {
	if _, ok := r.ext.(*sqlx.Tx); ok {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&LibraryRepository{db: r.db, ext: tx, logger: r.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertAlbum inserts or updates album. A missing id is generated.
func (r *LibraryRepository) UpsertAlbum(ctx context.Context, album *models.Album) error {
	now := time.Now()
	if album.ID == "" {
		album.ID = shared.GenerateID()
	}
	if album.CreatedAt.IsZero() {
		album.CreatedAt = now
	}
	album.UpdatedAt = now

	query := `
		INSERT INTO albums (id, title, year, album_type, art_url, spotify_id, musicbrainz_release_id,
			musicbrainz_release_group_id, youtube_playlist_id, is_local, is_in_library, is_hidden, created_at, updated_at)
		VALUES (:id, :title, :year, :album_type, :art_url, :spotify_id, :musicbrainz_release_id,
			:musicbrainz_release_group_id, :youtube_playlist_id, :is_local, :is_in_library, :is_hidden, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			year = excluded.year,
			album_type = excluded.album_type,
			art_url = excluded.art_url,
			spotify_id = excluded.spotify_id,
			musicbrainz_release_id = excluded.musicbrainz_release_id,
			musicbrainz_release_group_id = excluded.musicbrainz_release_group_id,
			youtube_playlist_id = excluded.youtube_playlist_id,
			is_local = excluded.is_local,
			is_in_library = excluded.is_in_library,
			is_hidden = excluded.is_hidden,
			updated_at = excluded.updated_at
	`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, album); err != nil {
		return fmt.Errorf("failed to upsert album: %w", err)
	}
	return nil
}

// UpsertTrack inserts or updates track. A missing id is generated.
func (r *LibraryRepository) UpsertTrack(ctx context.Context, track *models.Track) error {
	now := time.Now()
	if track.ID == "" {
		track.ID = shared.GenerateID()
	}
	if track.CreatedAt.IsZero() {
		track.CreatedAt = now
	}
	track.UpdatedAt = now

	query := `
		INSERT INTO tracks (id, album_id, title, disc_number, album_position, duration_ms, uri, spotify_id,
			musicbrainz_recording_id, youtube_video_id, metadata, image_url, is_in_library, created_at, updated_at)
		VALUES (:id, NULLIF(:album_id, ''), :title, :disc_number, :album_position, :duration_ms, :uri, :spotify_id,
			:musicbrainz_recording_id, :youtube_video_id, :metadata, :image_url, :is_in_library, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			album_id = excluded.album_id,
			title = excluded.title,
			disc_number = excluded.disc_number,
			album_position = excluded.album_position,
			duration_ms = excluded.duration_ms,
			uri = excluded.uri,
			spotify_id = excluded.spotify_id,
			musicbrainz_recording_id = excluded.musicbrainz_recording_id,
			youtube_video_id = excluded.youtube_video_id,
			metadata = excluded.metadata,
			image_url = excluded.image_url,
			is_in_library = excluded.is_in_library,
			updated_at = excluded.updated_at
	`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, track); err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

// SetAlbumTags replaces the album's tag set.
func (r *LibraryRepository) SetAlbumTags(ctx context.Context, albumID string, tags []string) error {
	if _, err := r.ext.ExecContext(ctx, `DELETE FROM album_tags WHERE album_id = ?`, albumID); err != nil {
		return fmt.Errorf("failed to clear album tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := r.ext.ExecContext(ctx,
			`INSERT OR IGNORE INTO album_tags (album_id, tag) VALUES (?, ?)`, albumID, tag); err != nil {
			return fmt.Errorf("failed to insert album tag: %w", err)
		}
	}
	return nil
}

// SetAlbumTracks upserts tracks as the album's track list and deletes album tracks not in it.
// Track ids are generated where missing and written back into the slice.
func (r *LibraryRepository) SetAlbumTracks(ctx context.Context, albumID string, tracks []models.Track) error {
	keep := make([]string, 0, len(tracks))
	for i := range tracks {
		tracks[i].AlbumID = albumID
		if err := r.UpsertTrack(ctx, &tracks[i]); err != nil {
			return err
		}
		keep = append(keep, tracks[i].ID)
	}

	if len(keep) == 0 {
		if _, err := r.ext.ExecContext(ctx, `DELETE FROM tracks WHERE album_id = ?`, albumID); err != nil {
			return fmt.Errorf("failed to delete album tracks: %w", err)
		}
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM tracks WHERE album_id = ? AND id NOT IN (?)`, albumID, keep)
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := r.ext.ExecContext(ctx, r.ext.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete removed tracks: %w", err)
	}
	return nil
}

// SetAlbumArtists replaces the album's artist credits.
func (r *LibraryRepository) SetAlbumArtists(ctx context.Context, albumID string, credits []models.ArtistCredit) error {
	return r.setCredits(ctx, "album_artists", "album_id", albumID, credits)
}

// SetTrackArtists replaces the track's artist credits.
func (r *LibraryRepository) SetTrackArtists(ctx context.Context, trackID string, credits []models.ArtistCredit) error {
	return r.setCredits(ctx, "track_artists", "track_id", trackID, credits)
}

func (r *LibraryRepository) setCredits(ctx context.Context, table, ownerColumn, ownerID string, credits []models.ArtistCredit) error {
	if _, err := r.ext.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, ownerColumn), ownerID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (%s, position, name, spotify_id, musicbrainz_id, join_phrase)
		VALUES (?, ?, ?, ?, ?, ?)
	`, table, ownerColumn)
	for _, c := range credits {
		if _, err := r.ext.ExecContext(ctx, query, ownerID, c.Position, c.Name, c.SpotifyID, c.MusicBrainzID, c.JoinPhrase); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// SaveAlbumCombo writes the album, its tags, tracks and credits in one transaction.
// Generated ids are written back into combo.
func (r *LibraryRepository) SaveAlbumCombo(ctx context.Context, combo *models.AlbumCombo) error {
	return r.WithTx(ctx, func(repo *LibraryRepository) error {
		if err := repo.UpsertAlbum(ctx, &combo.Album); err != nil {
			return err
		}
		if err := repo.SetAlbumTags(ctx, combo.Album.ID, combo.Tags); err != nil {
			return err
		}
		if err := repo.SetAlbumArtists(ctx, combo.Album.ID, combo.Artists); err != nil {
			return err
		}
		for i := range combo.Artists {
			combo.Artists[i].OwnerID = combo.Album.ID
		}

		tracks := make([]models.Track, len(combo.Tracks))
		for i, tc := range combo.Tracks {
			tracks[i] = tc.Track
		}
		if err := repo.SetAlbumTracks(ctx, combo.Album.ID, tracks); err != nil {
			return err
		}

		album := combo.Album
		for i := range combo.Tracks {
			combo.Tracks[i].Track = tracks[i]
			combo.Tracks[i].Album = &album
			for j := range combo.Tracks[i].Artists {
				combo.Tracks[i].Artists[j].OwnerID = tracks[i].ID
			}
			if err := repo.SetTrackArtists(ctx, tracks[i].ID, combo.Tracks[i].Artists); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveTrackCombo writes a track and its credits. The album row is upserted first when present,
// without touching the album's other tracks.
func (r *LibraryRepository) SaveTrackCombo(ctx context.Context, combo *models.TrackCombo) error {
	return r.WithTx(ctx, func(repo *LibraryRepository) error {
		if combo.Album != nil {
			if err := repo.UpsertAlbum(ctx, combo.Album); err != nil {
				return err
			}
			combo.Track.AlbumID = combo.Album.ID
		}
		if err := repo.UpsertTrack(ctx, &combo.Track); err != nil {
			return err
		}
		for i := range combo.Artists {
			combo.Artists[i].OwnerID = combo.Track.ID
		}
		return repo.SetTrackArtists(ctx, combo.Track.ID, combo.Artists)
	})
}

// Album retrieves an album by ID
func (r *LibraryRepository) Album(ctx context.Context, id string) (models.Album, error) {
	var album models.Album
	err := sqlx.GetContext(ctx, r.ext, &album, `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return album, fmt.Errorf("album %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return album, fmt.Errorf("failed to get album: %w", err)
	}
	return album, nil
}

// AlbumByExternalID finds an album by a provider id. Fails with [shared.ErrNotFound].
func (r *LibraryRepository) AlbumByExternalID(ctx context.Context, provider models.Provider, id string) (models.Album, error) {
	var album models.Album
	column, ok := albumIDColumns[provider]
	if !ok || id == "" {
		return album, fmt.Errorf("%w: provider %q", shared.ErrInvalidArgument, provider)
	}

	err := sqlx.GetContext(ctx, r.ext, &album,
		`SELECT `+albumColumns+` FROM albums WHERE `+column+` = ? ORDER BY is_in_library DESC, created_at LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return album, fmt.Errorf("%s album %s: %w", provider, id, shared.ErrNotFound)
	}
	if err != nil {
		return album, fmt.Errorf("failed to get album: %w", err)
	}
	return album, nil
}

// AlbumCombo loads an album with its credits, tags and tracks ordered by disc and position.
func (r *LibraryRepository) AlbumCombo(ctx context.Context, id string) (models.AlbumCombo, error) {
	album, err := r.Album(ctx, id)
	if err != nil {
		return models.AlbumCombo{}, err
	}
	combo := models.AlbumCombo{Album: album}

	if combo.Artists, err = r.credits(ctx, "album_artists", "album_id", id); err != nil {
		return combo, err
	}
	if err := sqlx.SelectContext(ctx, r.ext, &combo.Tags, `SELECT tag FROM album_tags WHERE album_id = ? ORDER BY rowid`, id); err != nil {
		return combo, fmt.Errorf("failed to load album tags: %w", err)
	}

	var tracks []models.Track
	if err := sqlx.SelectContext(ctx, r.ext, &tracks,
		`SELECT `+trackColumns+` FROM tracks WHERE album_id = ? ORDER BY disc_number, album_position, rowid`, id); err != nil {
		return combo, fmt.Errorf("failed to load album tracks: %w", err)
	}
	for _, t := range tracks {
		artists, err := r.credits(ctx, "track_artists", "track_id", t.ID)
		if err != nil {
			return combo, err
		}
		a := album
		combo.Tracks = append(combo.Tracks, models.TrackCombo{Track: t, Album: &a, Artists: artists})
	}
	return combo, nil
}

// Track retrieves a track by ID
func (r *LibraryRepository) Track(ctx context.Context, id string) (models.Track, error) {
	var track models.Track
	err := sqlx.GetContext(ctx, r.ext, &track, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return track, fmt.Errorf("track %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return track, fmt.Errorf("failed to get track: %w", err)
	}
	return track, nil
}

// TrackCombo loads a track with its album (if any) and credits.
func (r *LibraryRepository) TrackCombo(ctx context.Context, id string) (models.TrackCombo, error) {
	track, err := r.Track(ctx, id)
	if err != nil {
		return models.TrackCombo{}, err
	}
	return r.trackCombo(ctx, track)
}

func (r *LibraryRepository) trackCombo(ctx context.Context, track models.Track) (models.TrackCombo, error) {
	combo := models.TrackCombo{Track: track}
	if track.AlbumID != "" {
		album, err := r.Album(ctx, track.AlbumID)
		if err != nil {
			return combo, err
		}
		combo.Album = &album
	}

	artists, err := r.credits(ctx, "track_artists", "track_id", track.ID)
	if err != nil {
		return combo, err
	}
	combo.Artists = artists
	return combo, nil
}

// TrackByExternalID finds a track by a provider id. Fails with [shared.ErrNotFound].
func (r *LibraryRepository) TrackByExternalID(ctx context.Context, provider models.Provider, id string) (models.TrackCombo, error) {
	column, ok := trackIDColumns[provider]
	if !ok || id == "" {
		return models.TrackCombo{}, fmt.Errorf("%w: provider %q", shared.ErrInvalidArgument, provider)
	}

	var track models.Track
	err := sqlx.GetContext(ctx, r.ext, &track,
		`SELECT `+trackColumns+` FROM tracks WHERE `+column+` = ? ORDER BY is_in_library DESC, created_at LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackCombo{}, fmt.Errorf("%s track %s: %w", provider, id, shared.ErrNotFound)
	}
	if err != nil {
		return models.TrackCombo{}, fmt.Errorf("failed to get track: %w", err)
	}
	return r.trackCombo(ctx, track)
}

// SetTrackExternalID records a discovered provider id on a track.
func (r *LibraryRepository) SetTrackExternalID(ctx context.Context, trackID string, provider models.Provider, id string) error {
	column, ok := trackIDColumns[provider]
	if !ok {
		return fmt.Errorf("%w: provider %q", shared.ErrInvalidArgument, provider)
	}

	result, err := r.ext.ExecContext(ctx,
		`UPDATE tracks SET `+column+` = ?, updated_at = ? WHERE id = ?`, id, time.Now(), trackID)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("track %s: %w", trackID, shared.ErrNotFound)
	}
	return nil
}

// RandomTracks returns up to n random in-library tracks whose ids are not in exclude.
func (r *LibraryRepository) RandomTracks(ctx context.Context, n int, exclude []string) ([]models.TrackCombo, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `SELECT ` + trackColumns + ` FROM tracks WHERE is_in_library = 1 ORDER BY RANDOM() LIMIT ?`
	args := []any{n}
	if len(exclude) > 0 {
		q, a, err := sqlx.In(`SELECT `+trackColumns+` FROM tracks WHERE is_in_library = 1 AND id NOT IN (?) ORDER BY RANDOM() LIMIT ?`, exclude, n)
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
		query, args = r.ext.Rebind(q), a
	}

	var tracks []models.Track
	if err := sqlx.SelectContext(ctx, r.ext, &tracks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select random tracks: %w", err)
	}

	combos := make([]models.TrackCombo, 0, len(tracks))
	for _, t := range tracks {
		tc, err := r.trackCombo(ctx, t)
		if err != nil {
			return nil, err
		}
		combos = append(combos, tc)
	}
	return combos, nil
}

// ListAlbums returns visible albums ordered by title.
func (r *LibraryRepository) ListAlbums(ctx context.Context) ([]models.Album, error) {
	var albums []models.Album
	if err := sqlx.SelectContext(ctx, r.ext, &albums,
		`SELECT `+albumColumns+` FROM albums WHERE is_hidden = 0 ORDER BY title COLLATE NOCASE`); err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, nil
}

// ListAlbumIDs returns the ids of visible albums.
func (r *LibraryRepository) ListAlbumIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, r.ext, &ids,
		`SELECT id FROM albums WHERE is_hidden = 0 ORDER BY title COLLATE NOCASE`); err != nil {
		return nil, fmt.Errorf("failed to list album ids: %w", err)
	}
	return ids, nil
}

// CountTracks returns the number of in-library tracks.
func (r *LibraryRepository) CountTracks(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.ext, &n, `SELECT COUNT(*) FROM tracks WHERE is_in_library = 1`); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

// DeleteAlbum removes an album; its tracks, credits and tags cascade.
func (r *LibraryRepository) DeleteAlbum(ctx context.Context, id string) error {
	result, err := r.ext.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("album %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *LibraryRepository) credits(ctx context.Context, table, ownerColumn, ownerID string) ([]models.ArtistCredit, error) {
	var credits []models.ArtistCredit
	query := fmt.Sprintf(`
		SELECT %s AS owner_id, position, name, spotify_id, musicbrainz_id, join_phrase
		FROM %s WHERE %s = ? ORDER BY position, rowid
	`, ownerColumn, table, ownerColumn)
	if err := sqlx.SelectContext(ctx, r.ext, &credits, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	return credits, nil
}
