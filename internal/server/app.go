// Package server initializes and runs the plaudsync server: it wires the
// database, blob storage, external tools and services, starts the
// background transcription worker and the HTTP API, and handles graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openplaud/plaudsync/internal/audioengine"
	"github.com/openplaud/plaudsync/internal/cryptox"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/plaudapi"
	"github.com/openplaud/plaudsync/internal/server/config"
	"github.com/openplaud/plaudsync/internal/server/httpapi"
	"github.com/openplaud/plaudsync/internal/server/notify"
	"github.com/openplaud/plaudsync/internal/server/repositories/repomanager"
	"github.com/openplaud/plaudsync/internal/server/services"
	"github.com/openplaud/plaudsync/internal/server/worker"
	"github.com/openplaud/plaudsync/internal/speech"
	"github.com/openplaud/plaudsync/internal/storage"
)

// tokenSealSalt is the fixed argon2id salt for the device-token sealing
// key. The secret itself comes from configuration.
const tokenSealSalt = "plaudsync-token-seal"

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	repos repomanager.Manager
	queue *worker.Queue
	httpd *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	repos, err := repomanager.NewPostgresManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	sealer, err := cryptox.NewSealer(cryptox.DeriveKey([]byte(cfg.TokenSealSecret), []byte(tokenSealSalt)))
	if err != nil {
		return nil, fmt.Errorf("sealer init error: %w", err)
	}

	audio := audioengine.New(cfg.FFmpegPath, cfg.FFprobePath, logger)
	stt := speech.NewWhisperEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel, logger)
	notifier := notify.NewLogNotifier(logger)

	transcribeSvc := services.NewTranscribeService(repos, store, audio, stt, logger)

	queue := worker.NewQueue(func(ctx context.Context, job worker.Job) error {
		_, err := transcribeSvc.Transcribe(ctx, job.UserID, job.RecordingID)
		return err
	}, logger)

	newClient := func(endpoint, token string) services.DeviceClient {
		return plaudapi.NewClient(endpoint, token, logger)
	}

	syncSvc := services.NewSyncService(repos, store, sealer, newClient, queue, notifier, logger)
	transformSvc := services.NewTransformService(repos, store, audio, logger)
	recordingSvc := services.NewRecordingService(repos, store, audio, logger)
	connectionSvc := services.NewConnectionService(repos, sealer, logger)

	api := httpapi.NewServer(httpapi.Config{
		Sync:        syncSvc,
		Transform:   transformSvc,
		Transcribe:  transcribeSvc,
		Recordings:  recordingSvc,
		Connections: connectionSvc,
		Store:       store,
		Health:      repos,
		JWTSecret:   []byte(cfg.JWTSecret),
		Logger:      logger,
	})

	httpd := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: api.Router(),
	}

	return &App{
		config: cfg,
		logger: logger,
		repos:  repos,
		queue:  queue,
		httpd:  httpd,
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case storage.BackendS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
		})
	case storage.BackendFS:
		return storage.NewFSStorage(cfg.FSBaseDir, cfg.FSBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)
	app.queue.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.httpd.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server failed", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.httpd.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
	}

	app.queue.Close()
	if err := app.repos.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close failed", "error", err)
	}
	app.logger.Info(shutdownCtx, "app stopped")
}
