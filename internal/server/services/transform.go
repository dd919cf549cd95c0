package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openplaud/plaudsync/internal/audioengine"
	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/dbx"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/repositories/repomanager"
	"github.com/openplaud/plaudsync/internal/storage"
)

// TransformService derives new recordings from stored ones: a
// silence-removed copy or a set of fixed-length parts. Derived rows carry
// synthetic plaudFileIds and never sync back to the device cloud.
type TransformService struct {
	repos  repomanager.Manager
	store  storage.Storage
	audio  AudioEngine
	logger logging.Logger
}

func NewTransformService(repos repomanager.Manager, store storage.Storage, audio AudioEngine,
	logger logging.Logger) *TransformService {
	return &TransformService{
		repos:  repos,
		store:  store,
		audio:  audio,
		logger: logger.With("service", "transform"),
	}
}

// RemoveSilence produces a silence-removed copy of the recording using the
// owner's stored thresholds. Re-running replaces the previous copy; the
// derived blob is removed again if registration fails.
func (s *TransformService) RemoveSilence(ctx context.Context, ownerID, recordingID string) (*models.Recording, error) {
	db := s.repos.DB()
	src, err := s.ownedRecording(ctx, ownerID, recordingID)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Download(ctx, src.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}

	pref, err := s.repos.Prefs(db).GetByUser(ctx, ownerID)
	if err != nil {
		pref = models.DefaultPrefs(ownerID)
	}

	out, err := s.audio.RemoveSilence(ctx, data, audioengine.SilenceOpts{
		ThresholdDB:       pref.SilenceThresholdDB,
		MinSilenceSeconds: pref.MinSilenceSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("remove silence: %w", err)
	}

	// An entirely-silent source yields an empty output file; refuse to
	// register a zero-duration recording.
	durSec, err := s.audio.ProbeDuration(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("probe output: %w", err)
	}
	if durSec <= 0 {
		return nil, fmt.Errorf("%w: silence removal produced empty audio", common.ErrValidation)
	}

	fileID := models.SilenceRemovedFileID(src.PlaudFileID)
	key := recordingKey(ownerID, fileID, "mp3")
	if err := s.store.Upload(ctx, key, out, "audio/mpeg"); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	rec := s.derivedRecording(src, fileID, key)
	rec.Filename = src.Filename + " (silence removed)"
	rec.DurationMS = int64(durSec * 1000)
	rec.FileSize = int64(len(out))
	rec.EndTime = src.StartTime.Add(time.Duration(durSec*1000) * time.Millisecond)

	if prev, err := s.repos.Recordings(db).GetByPlaudFileID(ctx, ownerID, fileID); err == nil {
		rec.ID = prev.ID
	}

	if err := s.repos.Recordings(db).Upsert(ctx, rec); err != nil {
		s.compensateDelete(ctx, key)
		return nil, fmt.Errorf("register: %w", err)
	}
	return rec, nil
}

// Split cuts the recording into fixed-length parts without re-encoding and
// registers them atomically. A recording shorter than one segment is a
// validation error. On failure every already-uploaded part blob is
// removed.
func (s *TransformService) Split(ctx context.Context, ownerID, recordingID string) ([]*models.Recording, error) {
	db := s.repos.DB()
	src, err := s.ownedRecording(ctx, ownerID, recordingID)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Download(ctx, src.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}

	pref, err := s.repos.Prefs(db).GetByUser(ctx, ownerID)
	if err != nil {
		pref = models.DefaultPrefs(ownerID)
	}

	ext := keyExt(src.StorageKey)
	parts, err := s.audio.Split(ctx, data, ext, pref.SplitSegmentMinutes*60)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: recording is shorter than one segment", common.ErrValidation)
	}

	contentType := "audio/" + ext
	records := make([]*models.Recording, 0, len(parts))
	uploaded := make([]string, 0, len(parts))
	partStart := src.StartTime

	for i, part := range parts {
		fileID := models.SplitPartFileID(src.PlaudFileID, i+1)
		key := recordingKey(ownerID, fileID, ext)

		durSec, err := s.audio.ProbeDuration(ctx, part)
		if err != nil {
			s.compensateDeleteAll(ctx, uploaded)
			return nil, fmt.Errorf("probe part %d: %w", i+1, err)
		}

		if err := s.store.Upload(ctx, key, part, contentType); err != nil {
			s.compensateDeleteAll(ctx, uploaded)
			return nil, fmt.Errorf("upload part %d: %w", i+1, err)
		}
		uploaded = append(uploaded, key)

		rec := s.derivedRecording(src, fileID, key)
		rec.Filename = fmt.Sprintf("%s (part %d)", src.Filename, i+1)
		rec.DurationMS = int64(durSec * 1000)
		rec.FileSize = int64(len(part))
		rec.StartTime = partStart
		rec.EndTime = partStart.Add(time.Duration(durSec*1000) * time.Millisecond)
		// Stream-copy timing drifts slightly; pin the last part to the
		// source's end.
		if i == len(parts)-1 {
			rec.EndTime = src.EndTime
		}
		partStart = rec.EndTime

		if prev, err := s.repos.Recordings(db).GetByPlaudFileID(ctx, ownerID, fileID); err == nil {
			rec.ID = prev.ID
		}
		records = append(records, rec)
	}

	// All parts register in one transaction so a partial split never
	// becomes visible.
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Recordings(tx)
		for _, rec := range records {
			if err := repo.Upsert(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.compensateDeleteAll(ctx, uploaded)
		return nil, fmt.Errorf("register parts: %w", err)
	}
	return records, nil
}

// ownedRecording loads a recording and hides other owners' rows behind
// not-found.
func (s *TransformService) ownedRecording(ctx context.Context, ownerID, recordingID string) (*models.Recording, error) {
	rec, err := s.repos.Recordings(s.repos.DB()).GetByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != ownerID {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (s *TransformService) derivedRecording(src *models.Recording, fileID, key string) *models.Recording {
	now := time.Now().UTC()
	return &models.Recording{
		ID:             uuid.NewString(),
		UserID:         src.UserID,
		DeviceSerial:   src.DeviceSerial,
		PlaudFileID:    fileID,
		Version:        fmt.Sprintf("%d", now.UnixMilli()),
		StartTime:      src.StartTime,
		EndTime:        src.EndTime,
		StorageBackend: s.store.Backend(),
		StorageKey:     key,
		DownloadedAt:   now,
		Timezone:       src.Timezone,
		ZoneMinutes:    src.ZoneMinutes,
		Scene:          src.Scene,
	}
}

func (s *TransformService) compensateDelete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "failed to remove orphaned blob", "key", key, "error", err)
	}
}

func (s *TransformService) compensateDeleteAll(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.compensateDelete(ctx, key)
	}
}

// keyExt extracts the audio extension from a storage key, defaulting to
// opus.
func keyExt(key string) string {
	ext := strings.TrimPrefix(path.Ext(key), ".")
	if ext == "" {
		return "opus"
	}
	return ext
}
