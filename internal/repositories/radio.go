package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/jmoiron/sqlx"
)

// RadioRepository persists the single active radio session row.
type RadioRepository struct {
	db *sqlx.DB
}

// NewRadioRepository creates a new RadioRepository with the given database connection
func NewRadioRepository(db *sqlx.DB) *RadioRepository {
	return &RadioRepository{db: db}
}

type radioRow struct {
	Type        string         `db:"type"`
	SeedID      string         `db:"seed_id"`
	UsedSpotify sql.NullString `db:"used_spotify_track_ids"`
	UsedYoutube sql.NullString `db:"used_youtube_video_ids"`
	UsedLocal   sql.NullString `db:"used_local_track_ids"`
	Initialized bool           `db:"initialized"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// LoadRadio returns the saved radio state. Fails with [shared.ErrNotFound] when no session was saved.
func (r *RadioRepository) LoadRadio(ctx context.Context) (*models.RadioState, error) {
	return loadRadio(ctx, r.db)
}

func loadRadio(ctx context.Context, q sqlx.QueryerContext) (*models.RadioState, error) {
	var row radioRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT type, seed_id, used_spotify_track_ids, used_youtube_video_ids, used_local_track_ids, initialized, updated_at
		FROM radio_state WHERE id = 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("radio state: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load radio state: %w", err)
	}

	state := &models.RadioState{
		Type:        models.RadioType(row.Type),
		SeedID:      row.SeedID,
		Initialized: row.Initialized,
		UpdatedAt:   row.UpdatedAt,
	}
	for _, col := range []struct {
		raw sql.NullString
		dst *[]string
	}{
		{row.UsedSpotify, &state.UsedSpotifyTrackIDs},
		{row.UsedYoutube, &state.UsedYoutubeVideoIDs},
		{row.UsedLocal, &state.UsedLocalTrackIDs},
	} {
		if !col.raw.Valid || col.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode used ids: %w", err)
		}
	}
	return state, nil
}

// SaveRadio replaces the saved radio state.
func (r *RadioRepository) SaveRadio(ctx context.Context, state *models.RadioState) error {
	return saveRadio(ctx, r.db, state)
}

func saveRadio(ctx context.Context, e sqlx.ExecerContext, state *models.RadioState) error {
	state.UpdatedAt = time.Now()

	var cols [3]sql.NullString
	for i, ids := range [][]string{state.UsedSpotifyTrackIDs, state.UsedYoutubeVideoIDs, state.UsedLocalTrackIDs} {
		if ids == nil {
			continue
		}
		b, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("failed to encode used ids: %w", err)
		}
		cols[i] = sql.NullString{String: string(b), Valid: true}
	}

	_, err := e.ExecContext(ctx, `
		INSERT INTO radio_state (id, type, seed_id, used_spotify_track_ids, used_youtube_video_ids, used_local_track_ids, initialized, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			seed_id = excluded.seed_id,
			used_spotify_track_ids = excluded.used_spotify_track_ids,
			used_youtube_video_ids = excluded.used_youtube_video_ids,
			used_local_track_ids = excluded.used_local_track_ids,
			initialized = excluded.initialized,
			updated_at = excluded.updated_at
	`, string(state.Type), state.SeedID, cols[0], cols[1], cols[2], state.Initialized, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save radio state: %w", err)
	}
	return nil
}

// AppendUsed records ids as used by the saved session and marks it initialized.
func (r *RadioRepository) AppendUsed(ctx context.Context, ids map[models.Provider]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	state, err := loadRadio(ctx, tx)
	if err != nil {
		return err
	}
	for p, id := range ids {
		state.AppendUsed(p, id)
	}
	state.Initialized = true

	if err := saveRadio(ctx, tx, state); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearRadio deletes the saved session.
func (r *RadioRepository) ClearRadio(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM radio_state WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear radio state: %w", err)
	}
	return nil
}
