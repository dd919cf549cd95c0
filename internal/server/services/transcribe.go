package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/repositories/repomanager"
	"github.com/openplaud/plaudsync/internal/speech"
	"github.com/openplaud/plaudsync/internal/storage"
	"github.com/openplaud/plaudsync/internal/transcript"
)

// TranscribeService runs the transcription pipeline: trailing-silence trim,
// speech-to-text, hallucination filtering, persistence. A recording with a
// non-empty transcript is never re-transcribed.
type TranscribeService struct {
	repos  repomanager.Manager
	store  storage.Storage
	audio  AudioEngine
	stt    speech.Engine
	logger logging.Logger
}

func NewTranscribeService(repos repomanager.Manager, store storage.Storage, audio AudioEngine,
	stt speech.Engine, logger logging.Logger) *TranscribeService {
	return &TranscribeService{
		repos:  repos,
		store:  store,
		audio:  audio,
		stt:    stt,
		logger: logger.With("service", "transcribe"),
	}
}

func (s *TranscribeService) Transcribe(ctx context.Context, ownerID, recordingID string) (*models.Transcription, error) {
	db := s.repos.DB()
	rec, err := s.repos.Recordings(db).GetByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != ownerID {
		return nil, common.ErrNotFound
	}

	existing, err := s.repos.Transcriptions(db).GetByRecordingID(ctx, recordingID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("load transcription: %w", err)
	}
	if existing != nil && existing.Text != "" {
		return existing, nil
	}

	data, err := s.store.Download(ctx, rec.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}

	// The trim is an accuracy improvement, not a prerequisite; on failure
	// the original audio is transcribed instead.
	ext := keyExt(rec.StorageKey)
	trimmed, err := s.audio.TrimTrailingSilence(ctx, data, ext)
	if err != nil {
		s.logger.Warn(ctx, "trailing-silence trim failed, using original audio",
			"recording_id", recordingID, "error", err)
		trimmed = data
	}

	res, err := s.stt.Transcribe(ctx, trimmed, "audio."+ext)
	if err != nil {
		return nil, fmt.Errorf("speech-to-text: %w", err)
	}

	text := res.Text
	if res.HasSegments() {
		text = transcript.CleanSegments(res.Segments)
	}
	text = transcript.TruncateRepeatedPhrases(text)

	tr := &models.Transcription{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		Text:        text,
		Language:    res.Language,
		Engine:      "whisper",
		Model:       s.stt.Model(),
		Provider:    "openai",
	}
	if existing != nil {
		tr.ID = existing.ID
	}
	if err := s.repos.Transcriptions(db).Upsert(ctx, tr); err != nil {
		return nil, fmt.Errorf("save transcription: %w", err)
	}
	return tr, nil
}
