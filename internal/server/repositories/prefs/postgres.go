package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/dbx"
	"github.com/openplaud/plaudsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*models.Prefs, error) {
	query := `
		SELECT user_id, auto_transcribe, notify_channels,
			silence_threshold_db, min_silence_seconds, split_segment_minutes
		FROM user_prefs WHERE user_id = $1
	`
	var item models.Prefs
	var channels string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&item.UserID, &item.AutoTranscribe, &channels,
		&item.SilenceThresholdDB, &item.MinSilenceSeconds, &item.SplitSegmentMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if channels != "" {
		item.NotifyChannels = strings.Split(channels, ",")
	}
	return &item, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.Prefs) error {
	query := `
		INSERT INTO user_prefs (user_id, auto_transcribe, notify_channels,
			silence_threshold_db, min_silence_seconds, split_segment_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET
			auto_transcribe = EXCLUDED.auto_transcribe,
			notify_channels = EXCLUDED.notify_channels,
			silence_threshold_db = EXCLUDED.silence_threshold_db,
			min_silence_seconds = EXCLUDED.min_silence_seconds,
			split_segment_minutes = EXCLUDED.split_segment_minutes;
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.AutoTranscribe, strings.Join(p.NotifyChannels, ","),
		p.SilenceThresholdDB, p.MinSilenceSeconds, p.SplitSegmentMinutes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
