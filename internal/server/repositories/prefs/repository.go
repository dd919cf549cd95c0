// Package prefs provides the PostgreSQL-backed repository for owner
// preferences.
package prefs

import (
	"context"

	"github.com/openplaud/plaudsync/internal/server/models"
)

// Repository is the persistence contract for preferences. Missing rows
// return common.ErrNotFound; callers substitute models.DefaultPrefs.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*models.Prefs, error)
	Upsert(ctx context.Context, p *models.Prefs) error
}
