package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/dbx"
	"github.com/openplaud/plaudsync/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordingColumns = `id, user_id, device_serial, plaud_file_id, version, filename,
	duration_ms, start_time, end_time, file_size, checksum,
	storage_backend, storage_key, downloaded_at,
	timezone, zone_minutes, scene, trashed, created_at, updated_at`

// Upsert registers a recording keyed by plaud_file_id. The conflict update
// is scoped to rows owned by the same user so a synthetic-id collision with
// another user's row updates nothing; that case surfaces as
// common.ErrConflict and the caller runs its compensating cleanup.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Recording) error {
	query := `
		INSERT INTO recordings (id, user_id, device_serial, plaud_file_id, version, filename,
			duration_ms, start_time, end_time, file_size, checksum,
			storage_backend, storage_key, downloaded_at,
			timezone, zone_minutes, scene, trashed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now())
		ON CONFLICT (plaud_file_id)
		DO UPDATE SET
			device_serial = EXCLUDED.device_serial,
			version = EXCLUDED.version,
			filename = EXCLUDED.filename,
			duration_ms = EXCLUDED.duration_ms,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			file_size = EXCLUDED.file_size,
			checksum = EXCLUDED.checksum,
			storage_backend = EXCLUDED.storage_backend,
			storage_key = EXCLUDED.storage_key,
			downloaded_at = EXCLUDED.downloaded_at,
			timezone = EXCLUDED.timezone,
			zone_minutes = EXCLUDED.zone_minutes,
			scene = EXCLUDED.scene,
			trashed = EXCLUDED.trashed,
			updated_at = now()
			WHERE recordings.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.DeviceSerial, rec.PlaudFileID, rec.Version, rec.Filename,
		rec.DurationMS, rec.StartTime, rec.EndTime, rec.FileSize, rec.Checksum,
		rec.StorageBackend, rec.StorageKey, rec.DownloadedAt,
		rec.Timezone, rec.ZoneMinutes, rec.Scene, rec.Trashed)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByPlaudFileID(ctx context.Context, userID, plaudFileID string) (*models.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE user_id = $1 AND plaud_file_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, plaudFileID))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE user_id = $1 ORDER BY start_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select recordings: %w", err)
	}
	defer rows.Close()

	var result []*models.Recording
	for rows.Next() {
		item, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Recording, error) {
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecording(s rowScanner) (*models.Recording, error) {
	var item models.Recording
	if err := s.Scan(
		&item.ID, &item.UserID, &item.DeviceSerial, &item.PlaudFileID, &item.Version, &item.Filename,
		&item.DurationMS, &item.StartTime, &item.EndTime, &item.FileSize, &item.Checksum,
		&item.StorageBackend, &item.StorageKey, &item.DownloadedAt,
		&item.Timezone, &item.ZoneMinutes, &item.Scene, &item.Trashed, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
