package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/speech"
)

type transcribeFixture struct {
	repos *fakeManager
	store *fakeStorage
	audio *fakeAudioEngine
	stt   *fakeSpeech
	svc   *TranscribeService
	rec   *models.Recording
}

func newTranscribeFixture(t *testing.T) *transcribeFixture {
	t.Helper()
	f := &transcribeFixture{
		repos: newFakeManager(t),
		store: newFakeStorage(),
		audio: newFakeAudioEngine(),
		stt:   &fakeSpeech{},
	}
	f.svc = NewTranscribeService(f.repos, f.store, f.audio, f.stt, testLogger())

	f.rec = &models.Recording{
		ID:          uuid.NewString(),
		UserID:      testOwner,
		PlaudFileID: "file-1",
		Filename:    "Morning standup",
		StorageKey:  "users/owner1/recordings/file-1.opus",
	}
	require.NoError(t, f.repos.recs.Upsert(context.Background(), f.rec))
	require.NoError(t, f.store.Upload(context.Background(), f.rec.StorageKey, []byte("audio"), "audio/opus"))
	return f
}

func TestTranscribe_PlainTextModel(t *testing.T) {
	f := newTranscribeFixture(t)
	f.stt.result = &speech.Result{
		Shape:    speech.ShapePlainText,
		Text:     "Hello world.",
		Language: "en",
	}

	tr, err := f.svc.Transcribe(context.Background(), testOwner, f.rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "Hello world.", tr.Text)
	assert.Equal(t, "en", tr.Language)
	assert.Equal(t, "whisper-1", tr.Model)
	assert.Equal(t, "openai", tr.Provider)

	stored, err := f.repos.trs.GetByRecordingID(context.Background(), f.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Text, stored.Text)
}

func TestTranscribe_SegmentsAreFiltered(t *testing.T) {
	f := newTranscribeFixture(t)
	f.stt.result = &speech.Result{
		Shape:    speech.ShapeVerboseSegments,
		Language: "en",
		Segments: []speech.Segment{
			{Start: 0, End: 5, Text: "Let's get started.", AvgLogprob: -0.2, CompressionRatio: 1.4},
			{Start: 5, End: 10, Text: "First item is the release.", AvgLogprob: -0.3, CompressionRatio: 1.5},
			// Hallucinated looping tail.
			{Start: 10, End: 15, Text: "Thank you. Thank you. Thank you.", AvgLogprob: -0.4, CompressionRatio: 8.2},
		},
	}

	tr, err := f.svc.Transcribe(context.Background(), testOwner, f.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Let's get started. First item is the release.", tr.Text)
}

func TestTranscribe_TextLevelLoopTruncated(t *testing.T) {
	f := newTranscribeFixture(t)
	loop := strings.TrimSpace(strings.Repeat("bye ", 20))
	f.stt.result = &speech.Result{
		Shape: speech.ShapePlainText,
		Text:  "See you tomorrow. " + loop + " and that concludes it",
	}

	tr, err := f.svc.Transcribe(context.Background(), testOwner, f.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "See you tomorrow. "+loop, tr.Text)
}

func TestTranscribe_IdempotentOnExistingText(t *testing.T) {
	f := newTranscribeFixture(t)
	require.NoError(t, f.repos.trs.Upsert(context.Background(), &models.Transcription{
		ID:          uuid.NewString(),
		RecordingID: f.rec.ID,
		Text:        "already transcribed",
	}))

	tr, err := f.svc.Transcribe(context.Background(), testOwner, f.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "already transcribed", tr.Text)
	assert.Zero(t, f.stt.calls)
}

func TestTranscribe_TrimFailureFallsBackToOriginal(t *testing.T) {
	f := newTranscribeFixture(t)
	f.audio.trimErr = assert.AnError
	f.stt.result = &speech.Result{Shape: speech.ShapePlainText, Text: "ok"}

	tr, err := f.svc.Transcribe(context.Background(), testOwner, f.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", tr.Text)
	assert.Equal(t, 1, f.stt.calls)
}

func TestTranscribe_SpeechErrorPropagates(t *testing.T) {
	f := newTranscribeFixture(t)
	f.stt.err = assert.AnError

	_, err := f.svc.Transcribe(context.Background(), testOwner, f.rec.ID)
	assert.Error(t, err)
	_, err = f.repos.trs.GetByRecordingID(context.Background(), f.rec.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTranscribe_OtherOwnersRecordingHidden(t *testing.T) {
	f := newTranscribeFixture(t)
	_, err := f.svc.Transcribe(context.Background(), "stranger", f.rec.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
