package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/repositories/repomanager"
	"github.com/openplaud/plaudsync/internal/storage"
)

// signedURLTTL bounds how long a presigned download link stays valid.
const signedURLTTL = 15 * time.Minute

// RecordingService serves the owner's recording library: listing,
// lookups, presigned downloads, local renames and manual uploads.
type RecordingService struct {
	repos  repomanager.Manager
	store  storage.Storage
	audio  AudioEngine
	logger logging.Logger
}

func NewRecordingService(repos repomanager.Manager, store storage.Storage, audio AudioEngine,
	logger logging.Logger) *RecordingService {
	return &RecordingService{
		repos:  repos,
		store:  store,
		audio:  audio,
		logger: logger.With("service", "recordings"),
	}
}

func (s *RecordingService) List(ctx context.Context, ownerID string) ([]*models.Recording, error) {
	return s.repos.Recordings(s.repos.DB()).ListByUser(ctx, ownerID)
}

func (s *RecordingService) Get(ctx context.Context, ownerID, recordingID string) (*models.Recording, error) {
	rec, err := s.repos.Recordings(s.repos.DB()).GetByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != ownerID {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

// DownloadURL returns a short-lived link to the recording's audio blob.
func (s *RecordingService) DownloadURL(ctx context.Context, ownerID, recordingID string) (string, error) {
	rec, err := s.Get(ctx, ownerID, recordingID)
	if err != nil {
		return "", err
	}
	return s.store.SignedURL(ctx, rec.StorageKey, signedURLTTL)
}

func (s *RecordingService) GetTranscription(ctx context.Context, ownerID, recordingID string) (*models.Transcription, error) {
	if _, err := s.Get(ctx, ownerID, recordingID); err != nil {
		return nil, err
	}
	return s.repos.Transcriptions(s.repos.DB()).GetByRecordingID(ctx, recordingID)
}

// Rename changes the local filename. For remote-origin recordings the next
// sync run pushes the new name to the device cloud.
func (s *RecordingService) Rename(ctx context.Context, ownerID, recordingID, filename string) (*models.Recording, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", common.ErrValidation)
	}
	rec, err := s.Get(ctx, ownerID, recordingID)
	if err != nil {
		return nil, err
	}
	rec.Filename = filename
	if err := s.repos.Recordings(s.repos.DB()).Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	return rec, nil
}

// Upload registers a manually uploaded audio file. The recording carries
// an uploaded- synthetic id and never syncs back to the device cloud.
func (s *RecordingService) Upload(ctx context.Context, ownerID, filename string, data []byte) (*models.Recording, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio upload", common.ErrValidation)
	}
	durSec, err := s.audio.ProbeDuration(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable audio: %v", common.ErrValidation, err)
	}

	ext := keyExt(filename)
	fileID := models.PrefixUploaded + uuid.NewString()
	key := recordingKey(ownerID, fileID, ext)
	if err := s.store.Upload(ctx, key, data, "audio/"+ext); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	now := time.Now().UTC()
	rec := &models.Recording{
		ID:             uuid.NewString(),
		UserID:         ownerID,
		PlaudFileID:    fileID,
		Version:        fmt.Sprintf("%d", now.UnixMilli()),
		Filename:       filename,
		DurationMS:     int64(durSec * 1000),
		StartTime:      now,
		EndTime:        now.Add(time.Duration(durSec*1000) * time.Millisecond),
		FileSize:       int64(len(data)),
		StorageBackend: s.store.Backend(),
		StorageKey:     key,
		DownloadedAt:   now,
	}
	if err := s.repos.Recordings(s.repos.DB()).Upsert(ctx, rec); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn(ctx, "failed to remove orphaned blob", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return rec, nil
}
