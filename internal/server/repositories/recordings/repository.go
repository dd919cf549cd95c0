// Package recordings provides the PostgreSQL-backed repository for
// Recording rows.
package recordings

import (
	"context"

	"github.com/openplaud/plaudsync/internal/server/models"
)

// Repository is the persistence contract for recordings.
type Repository interface {
	// Upsert inserts the recording or, on a plaud_file_id conflict,
	// updates the existing row when it belongs to the same owner. A
	// conflicting row owned by another user yields common.ErrConflict
	// and no write.
	Upsert(ctx context.Context, rec *models.Recording) error

	// GetByID returns a recording by surrogate id.
	GetByID(ctx context.Context, id string) (*models.Recording, error)

	// GetByPlaudFileID returns the owner's recording with the given
	// remote (or synthetic) file id.
	GetByPlaudFileID(ctx context.Context, userID, plaudFileID string) (*models.Recording, error)

	// ListByUser returns the owner's recordings, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Recording, error)
}
