package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openplaud/plaudsync/internal/audioengine"
	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/dbx"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/plaudapi"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/notify"
	"github.com/openplaud/plaudsync/internal/server/repositories/connections"
	"github.com/openplaud/plaudsync/internal/server/repositories/prefs"
	"github.com/openplaud/plaudsync/internal/server/repositories/recordings"
	"github.com/openplaud/plaudsync/internal/server/repositories/transcriptions"
	"github.com/openplaud/plaudsync/internal/server/worker"
	"github.com/openplaud/plaudsync/internal/speech"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeRecordingsRepo keeps rows in memory keyed the way the SQL schema
// does: unique plaud_file_id, owner-scoped conflict on upsert.
type fakeRecordingsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Recording // by plaud_file_id

	failUpsertFor map[string]error // plaud_file_id -> error
}

func newFakeRecordingsRepo() *fakeRecordingsRepo {
	return &fakeRecordingsRepo{
		rows:          make(map[string]*models.Recording),
		failUpsertFor: make(map[string]error),
	}
}

func (f *fakeRecordingsRepo) Upsert(_ context.Context, rec *models.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failUpsertFor[rec.PlaudFileID]; ok {
		return err
	}
	if prev, ok := f.rows[rec.PlaudFileID]; ok {
		if prev.UserID != rec.UserID {
			return common.ErrConflict
		}
		cp := *rec
		cp.ID = prev.ID
		f.rows[rec.PlaudFileID] = &cp
		return nil
	}
	cp := *rec
	f.rows[rec.PlaudFileID] = &cp
	return nil
}

func (f *fakeRecordingsRepo) GetByID(_ context.Context, id string) (*models.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeRecordingsRepo) GetByPlaudFileID(_ context.Context, userID, plaudFileID string) (*models.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[plaudFileID]
	if !ok || r.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecordingsRepo) ListByUser(_ context.Context, userID string) ([]*models.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Recording
	for _, r := range f.rows {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeTranscriptionsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Transcription // by recording_id
}

func newFakeTranscriptionsRepo() *fakeTranscriptionsRepo {
	return &fakeTranscriptionsRepo{rows: make(map[string]*models.Transcription)}
}

func (f *fakeTranscriptionsRepo) Upsert(_ context.Context, tr *models.Transcription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tr
	f.rows[tr.RecordingID] = &cp
	return nil
}

func (f *fakeTranscriptionsRepo) GetByRecordingID(_ context.Context, recordingID string) (*models.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.rows[recordingID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

type fakeConnectionsRepo struct {
	mu         sync.Mutex
	rows       map[string]*models.SyncConnection // by user_id
	lastSyncAt map[string]time.Time
}

func newFakeConnectionsRepo() *fakeConnectionsRepo {
	return &fakeConnectionsRepo{
		rows:       make(map[string]*models.SyncConnection),
		lastSyncAt: make(map[string]time.Time),
	}
}

func (f *fakeConnectionsRepo) Upsert(_ context.Context, conn *models.SyncConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *conn
	f.rows[conn.UserID] = &cp
	return nil
}

func (f *fakeConnectionsRepo) GetByUser(_ context.Context, userID string) (*models.SyncConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.rows[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (f *fakeConnectionsRepo) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, userID)
	return nil
}

func (f *fakeConnectionsRepo) UpdateLastSync(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSyncAt[userID] = at
	return nil
}

type fakePrefsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Prefs
}

func newFakePrefsRepo() *fakePrefsRepo {
	return &fakePrefsRepo{rows: make(map[string]*models.Prefs)}
}

func (f *fakePrefsRepo) GetByUser(_ context.Context, userID string) (*models.Prefs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePrefsRepo) Upsert(_ context.Context, p *models.Prefs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.UserID] = &cp
	return nil
}

// fakeManager hands out the in-memory repos regardless of the handle, and
// backs DB() with an in-memory sqlite so transactions begin and commit
// for real.
type fakeManager struct {
	db   *sql.DB
	recs *fakeRecordingsRepo
	trs  *fakeTranscriptionsRepo
	cons *fakeConnectionsRepo
	prfs *fakePrefsRepo
}

func newFakeManager(t *testing.T) *fakeManager {
	t.Helper()
	db, err := sql.Open("sqlite", "file:services_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	return &fakeManager{
		db:   db,
		recs: newFakeRecordingsRepo(),
		trs:  newFakeTranscriptionsRepo(),
		cons: newFakeConnectionsRepo(),
		prfs: newFakePrefsRepo(),
	}
}

func (m *fakeManager) Recordings(dbx.DBTX) recordings.Repository { return m.recs }

func (m *fakeManager) Transcriptions(dbx.DBTX) transcriptions.Repository { return m.trs }

func (m *fakeManager) Connections(dbx.DBTX) connections.Repository { return m.cons }

func (m *fakeManager) Prefs(dbx.DBTX) prefs.Repository { return m.prfs }

func (m *fakeManager) DB() *sql.DB { return m.db }

func (m *fakeManager) Ping(context.Context) error { return nil }

func (m *fakeManager) Close() error { return nil }

// fakeDeviceClient serves canned listing pages and audio payloads.
type fakeDeviceClient struct {
	mu        sync.Mutex
	pages     [][]plaudapi.RemoteRecording
	audio     map[string][]byte // file id -> payload
	renames   map[string]string // file id -> new filename
	listErr   error
	listCalls int
	dlErrFor  map[string]error
}

func newFakeDeviceClient() *fakeDeviceClient {
	return &fakeDeviceClient{
		audio:    make(map[string][]byte),
		renames:  make(map[string]string),
		dlErrFor: make(map[string]error),
	}
}

func (c *fakeDeviceClient) ListRecordings(_ context.Context, opts plaudapi.ListOptions) ([]plaudapi.RemoteRecording, error) {
	c.mu.Lock()
	c.listCalls++
	c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	page := opts.Skip / opts.Limit
	if page >= len(c.pages) {
		return nil, nil
	}
	return c.pages[page], nil
}

func (c *fakeDeviceClient) DownloadURL(_ context.Context, fileID string, _ bool) (string, error) {
	if err, ok := c.dlErrFor[fileID]; ok {
		return "", err
	}
	return "https://signed.example/" + fileID, nil
}

func (c *fakeDeviceClient) Rename(_ context.Context, fileID, filename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renames[fileID] = filename
	return nil
}

func (c *fakeDeviceClient) Download(_ context.Context, rawURL string) ([]byte, error) {
	id := rawURL[len("https://signed.example/"):]
	data, ok := c.audio[id]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", id)
	}
	return data, nil
}

// fakeStorage is an in-memory blob store.
type fakeStorage struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	failKeys map[string]error
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		blobs:    make(map[string][]byte),
		failKeys: make(map[string]error),
	}
}

func (s *fakeStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failKeys[key]; ok {
		return err
	}
	s.blobs[key] = bytes.Clone(data)
	return nil
}

func (s *fakeStorage) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: not found", key)
	}
	return bytes.Clone(data), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store.example/" + key, nil
}

func (s *fakeStorage) TestConnection(context.Context) error { return nil }

func (s *fakeStorage) Backend() string { return "fake" }

// fakeAudioEngine returns canned transform outputs.
type fakeAudioEngine struct {
	removeSilenceOut []byte
	removeSilenceErr error
	trimOut          []byte
	trimErr          error
	splitOut         [][]byte
	splitErr         error
	durations        map[string]float64 // payload -> seconds
	probeErr         error
}

func newFakeAudioEngine() *fakeAudioEngine {
	return &fakeAudioEngine{durations: make(map[string]float64)}
}

func (e *fakeAudioEngine) RemoveSilence(context.Context, []byte, audioengine.SilenceOpts) ([]byte, error) {
	return e.removeSilenceOut, e.removeSilenceErr
}

func (e *fakeAudioEngine) TrimTrailingSilence(_ context.Context, audio []byte, _ string) ([]byte, error) {
	if e.trimErr != nil {
		return nil, e.trimErr
	}
	if e.trimOut != nil {
		return e.trimOut, nil
	}
	return audio, nil
}

func (e *fakeAudioEngine) Split(context.Context, []byte, string, int) ([][]byte, error) {
	return e.splitOut, e.splitErr
}

func (e *fakeAudioEngine) ProbeDuration(_ context.Context, audio []byte) (float64, error) {
	if e.probeErr != nil {
		return 0, e.probeErr
	}
	if d, ok := e.durations[string(audio)]; ok {
		return d, nil
	}
	return 60, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
	full bool
}

func (q *fakeQueue) Enqueue(job worker.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Notify(_ context.Context, _ []string, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// fakeSpeech returns a canned transcription result.
type fakeSpeech struct {
	result *speech.Result
	err    error
	calls  int
}

func (s *fakeSpeech) Transcribe(context.Context, []byte, string) (*speech.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *fakeSpeech) Model() string { return "whisper-1" }
