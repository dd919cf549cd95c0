package connections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Upsert(ctx context.Context, conn *models.SyncConnection) error {
	query := `
		INSERT INTO sync_connections (id, user_id, encrypted_token, token_nonce, endpoint)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET
			encrypted_token = EXCLUDED.encrypted_token,
			token_nonce = EXCLUDED.token_nonce,
			endpoint = EXCLUDED.endpoint;
	`
	_, err := r.db.ExecContext(ctx, query,
		conn.ID, conn.UserID, conn.EncryptedToken, conn.TokenNonce, conn.Endpoint)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*models.SyncConnection, error) {
	query := `
		SELECT id, user_id, encrypted_token, token_nonce, endpoint, last_sync_at
		FROM sync_connections WHERE user_id = $1
	`
	var item models.SyncConnection
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&item.ID, &item.UserID, &item.EncryptedToken, &item.TokenNonce,
		&item.Endpoint, &item.LastSyncAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_connections WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateLastSync(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_connections SET last_sync_at = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
