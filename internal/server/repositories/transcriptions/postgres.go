package transcriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Upsert(ctx context.Context, tr *models.Transcription) error {
	query := `
		INSERT INTO transcriptions (id, recording_id, text, language, engine, model, provider, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (recording_id)
		DO UPDATE SET
			text = EXCLUDED.text,
			language = EXCLUDED.language,
			engine = EXCLUDED.engine,
			model = EXCLUDED.model,
			provider = EXCLUDED.provider,
			updated_at = now();
	`
	_, err := r.db.ExecContext(ctx, query,
		tr.ID, tr.RecordingID, tr.Text, tr.Language, tr.Engine, tr.Model, tr.Provider)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByRecordingID(ctx context.Context, recordingID string) (*models.Transcription, error) {
	query := `
		SELECT id, recording_id, text, language, engine, model, provider, created_at, updated_at
		FROM transcriptions WHERE recording_id = $1
	`
	var item models.Transcription
	err := r.db.QueryRowContext(ctx, query, recordingID).Scan(
		&item.ID, &item.RecordingID, &item.Text, &item.Language,
		&item.Engine, &item.Model, &item.Provider, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}
