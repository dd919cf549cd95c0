package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/cryptox"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/plaudapi"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/notify"
	"github.com/openplaud/plaudsync/internal/server/repositories/repomanager"
	"github.com/openplaud/plaudsync/internal/server/worker"
	"github.com/openplaud/plaudsync/internal/storage"
)

const (
	// syncPageSize and syncMaxPages bound one run; a library that outgrows
	// the cap is picked up by the next run.
	syncPageSize = 50
	syncMaxPages = 20

	// syncBatchSize is how many recordings download concurrently.
	syncBatchSize = 5

	// quietPagesLimit stops paging after this many consecutive pages with
	// no new or updated recordings. Listing is newest-first, so quiet
	// pages mean the rest is already synced.
	quietPagesLimit = 2
)

// SyncService pulls the owner's recording library from the device cloud
// into local storage.
type SyncService struct {
	repos     repomanager.Manager
	store     storage.Storage
	sealer    *cryptox.Sealer
	newClient DeviceClientFactory
	queue     TranscribeQueue
	notifier  notify.Notifier
	logger    logging.Logger
}

func NewSyncService(repos repomanager.Manager, store storage.Storage, sealer *cryptox.Sealer,
	newClient DeviceClientFactory, queue TranscribeQueue, notifier notify.Notifier,
	logger logging.Logger) *SyncService {
	return &SyncService{
		repos:     repos,
		store:     store,
		sealer:    sealer,
		newClient: newClient,
		queue:     queue,
		notifier:  notifier,
		logger:    logger.With("service", "sync"),
	}
}

// itemOutcome classifies what one remote recording produced.
type itemOutcome int

const (
	outcomeSkipped itemOutcome = iota
	outcomeNew
	outcomeUpdated
)

type itemResult struct {
	outcome     itemOutcome
	recordingID string
	err         error
}

// Sync runs one full pull for the owner. Expected failures never surface
// as a Go error: a caller always receives a result, with per-item and
// run-level failures accumulated in its error list.
func (s *SyncService) Sync(ctx context.Context, ownerID string) (*models.SyncResult, error) {
	result := &models.SyncResult{}

	db := s.repos.DB()
	conn, err := s.repos.Connections(db).GetByUser(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			result.AddError("no connection")
		} else {
			result.AddError(fmt.Sprintf("load connection: %v", err))
		}
		return result, nil
	}

	// The attempt is stamped even when it fails below, so staleness is
	// observable.
	defer func() {
		if err := s.repos.Connections(db).UpdateLastSync(ctx, ownerID, time.Now().UTC()); err != nil {
			s.logger.Warn(ctx, "failed to stamp last sync", "owner", ownerID, "error", err)
		}
	}()

	token, err := s.sealer.Open(conn.EncryptedToken, conn.TokenNonce)
	if err != nil {
		result.AddError(fmt.Sprintf("open connection token: %v", err))
		return result, nil
	}
	client := s.newClient(conn.Endpoint, string(token))

	pref, err := s.repos.Prefs(db).GetByUser(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to load prefs, using defaults", "owner", ownerID, "error", err)
		}
		pref = models.DefaultPrefs(ownerID)
	}

	quietPages := 0

	for page := 0; page < syncMaxPages; page++ {
		items, err := client.ListRecordings(ctx, plaudapi.ListOptions{
			Skip:      page * syncPageSize,
			Limit:     syncPageSize,
			SortField: "start_time",
			SortDesc:  true,
		})
		if err != nil {
			// A listing-level failure aborts paging as one terminal error.
			result.AddError(fmt.Sprintf("list recordings: %v", err))
			return result, nil
		}

		changed := s.syncPage(ctx, client, ownerID, items, result)

		if changed {
			quietPages = 0
		} else {
			quietPages++
		}
		if len(items) < syncPageSize || quietPages >= quietPagesLimit {
			break
		}
	}

	if pref.AutoTranscribe {
		for _, id := range result.PendingTranscription {
			if !s.queue.Enqueue(worker.Job{UserID: ownerID, RecordingID: id}) {
				s.logger.Warn(ctx, "transcription queue full", "recording_id", id)
			}
		}
	} else {
		result.PendingTranscription = nil
	}

	s.notifySync(ctx, ownerID, pref, result)

	s.logger.Info(ctx, "sync finished", "owner", ownerID,
		"new", result.NewRecordings, "updated", result.UpdatedRecordings,
		"skipped", result.SkippedRecordings, "errors", len(result.Errors))
	return result, nil
}

// syncPage processes one listing page in concurrent batches and folds the
// outcomes into result. It reports whether anything on the page changed.
func (s *SyncService) syncPage(ctx context.Context, client DeviceClient, ownerID string,
	items []plaudapi.RemoteRecording, result *models.SyncResult) bool {

	changed := false
	for start := 0; start < len(items); start += syncBatchSize {
		end := start + syncBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		outcomes := make([]itemResult, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			i := i
			g.Go(func() error {
				outcomes[i] = s.syncOne(gctx, client, ownerID, batch[i])
				return nil
			})
		}
		_ = g.Wait()

		for i, out := range outcomes {
			switch {
			case out.err != nil:
				result.AddError(fmt.Sprintf("%s: %v", batch[i].ID, out.err))
			case out.outcome == outcomeNew:
				result.NewRecordings++
				result.PendingTranscription = append(result.PendingTranscription, out.recordingID)
				changed = true
			case out.outcome == outcomeUpdated:
				result.UpdatedRecordings++
				result.PendingTranscription = append(result.PendingTranscription, out.recordingID)
				changed = true
			default:
				result.SkippedRecordings++
			}
		}
	}
	return changed
}

// syncOne reconciles a single remote recording. An unchanged version stamp
// short-circuits the download; a local rename is pushed back to the cloud
// on that path.
func (s *SyncService) syncOne(ctx context.Context, client DeviceClient, ownerID string,
	remote plaudapi.RemoteRecording) itemResult {

	db := s.repos.DB()
	repo := s.repos.Recordings(db)

	existing, err := repo.GetByPlaudFileID(ctx, ownerID, remote.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return itemResult{err: fmt.Errorf("lookup: %w", err)}
	}

	if existing != nil && existing.Version == remote.Version {
		if existing.Filename != remote.Filename && !models.IsLocalOrigin(existing.PlaudFileID) {
			if err := client.Rename(ctx, remote.ID, existing.Filename); err != nil {
				s.logger.Warn(ctx, "failed to push filename to cloud",
					"plaud_file_id", remote.ID, "error", err)
			}
		}
		s.logger.Debug(ctx, "version unchanged, skipping", "plaud_file_id", remote.ID)
		return itemResult{outcome: outcomeSkipped, recordingID: existing.ID}
	}

	rawURL, err := client.DownloadURL(ctx, remote.ID, true)
	if err != nil {
		return itemResult{err: fmt.Errorf("download url: %w", err)}
	}
	data, err := client.Download(ctx, rawURL)
	if err != nil {
		return itemResult{err: fmt.Errorf("download: %w", err)}
	}

	key := recordingKey(ownerID, remote.ID, "opus")
	if err := s.store.Upload(ctx, key, data, "audio/opus"); err != nil {
		return itemResult{err: fmt.Errorf("upload: %w", err)}
	}

	rec := &models.Recording{
		ID:             uuid.NewString(),
		UserID:         ownerID,
		DeviceSerial:   remote.DeviceSerial,
		PlaudFileID:    remote.ID,
		Version:        remote.Version,
		Filename:       remote.Filename,
		DurationMS:     remote.DurationMS,
		StartTime:      time.UnixMilli(remote.StartTimeMS).UTC(),
		EndTime:        time.UnixMilli(remote.EndTimeMS).UTC(),
		FileSize:       remote.FileSize,
		Checksum:       remote.Checksum,
		StorageBackend: s.store.Backend(),
		StorageKey:     key,
		DownloadedAt:   time.Now().UTC(),
		Timezone:       remote.Timezone,
		ZoneMinutes:    remote.ZoneMinutes,
		Scene:          remote.Scene,
		Trashed:        remote.Trashed,
	}
	if existing != nil {
		rec.ID = existing.ID
	}

	if err := repo.Upsert(ctx, rec); err != nil {
		return itemResult{err: fmt.Errorf("register: %w", err)}
	}

	if existing != nil {
		return itemResult{outcome: outcomeUpdated, recordingID: rec.ID}
	}
	return itemResult{outcome: outcomeNew, recordingID: rec.ID}
}

func (s *SyncService) notifySync(ctx context.Context, ownerID string, pref *models.Prefs, result *models.SyncResult) {
	if len(pref.NotifyChannels) == 0 {
		return
	}
	if result.NewRecordings == 0 && result.UpdatedRecordings == 0 && len(result.Errors) == 0 {
		return
	}
	event := notify.Event{
		Kind:   notify.KindSyncCompleted,
		UserID: ownerID,
		Message: fmt.Sprintf("sync: %d new, %d updated, %d errors",
			result.NewRecordings, result.UpdatedRecordings, len(result.Errors)),
	}
	if err := s.notifier.Notify(ctx, pref.NotifyChannels, event); err != nil {
		result.AddError(fmt.Sprintf("notification: %v", err))
		s.logger.Warn(ctx, "notification failed", "owner", ownerID, "error", err)
	}
}

// recordingKey is the deterministic blob key for an owner's recording.
func recordingKey(ownerID, plaudFileID, ext string) string {
	return fmt.Sprintf("users/%s/recordings/%s.%s", ownerID, plaudFileID, ext)
}
