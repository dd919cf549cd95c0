// Package transcriptions provides the PostgreSQL-backed repository for
// Transcription rows.
package transcriptions

import (
	"context"

	"github.com/openplaud/plaudsync/internal/server/models"
)

// Repository is the persistence contract for transcriptions. A recording
// has at most one transcription row; Upsert replaces the text in place.
type Repository interface {
	Upsert(ctx context.Context, tr *models.Transcription) error
	GetByRecordingID(ctx context.Context, recordingID string) (*models.Transcription, error)
}
