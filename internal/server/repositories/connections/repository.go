// Package connections provides the PostgreSQL-backed repository for
// per-owner device cloud connections.
package connections

import (
	"context"
	"time"

	"github.com/openplaud/plaudsync/internal/server/models"
)

// Repository is the persistence contract for sync connections. Each owner
// has at most one connection row.
type Repository interface {
	Upsert(ctx context.Context, conn *models.SyncConnection) error
	GetByUser(ctx context.Context, userID string) (*models.SyncConnection, error)
	Delete(ctx context.Context, userID string) error

	// UpdateLastSync stamps the connection after a sync attempt,
	// successful or not.
	UpdateLastSync(ctx context.Context, userID string, at time.Time) error
}
