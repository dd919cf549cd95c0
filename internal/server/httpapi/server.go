// Package httpapi is the gin HTTP surface. Handlers are thin glue: they
// resolve the owner from the bearer token, call a service and map sentinel
// errors to status codes.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/services"
	"github.com/openplaud/plaudsync/internal/storage"
)

// The handler-facing service surfaces, satisfied by the concrete services.
type (
	SyncAPI interface {
		Sync(ctx context.Context, ownerID string) (*models.SyncResult, error)
	}

	TransformAPI interface {
		RemoveSilence(ctx context.Context, ownerID, recordingID string) (*models.Recording, error)
		Split(ctx context.Context, ownerID, recordingID string) ([]*models.Recording, error)
	}

	TranscribeAPI interface {
		Transcribe(ctx context.Context, ownerID, recordingID string) (*models.Transcription, error)
	}

	RecordingAPI interface {
		List(ctx context.Context, ownerID string) ([]*models.Recording, error)
		Get(ctx context.Context, ownerID, recordingID string) (*models.Recording, error)
		DownloadURL(ctx context.Context, ownerID, recordingID string) (string, error)
		GetTranscription(ctx context.Context, ownerID, recordingID string) (*models.Transcription, error)
		Rename(ctx context.Context, ownerID, recordingID, filename string) (*models.Recording, error)
		Upload(ctx context.Context, ownerID, filename string, data []byte) (*models.Recording, error)
	}

	ConnectionAPI interface {
		Set(ctx context.Context, ownerID, token, endpoint string) error
		Disconnect(ctx context.Context, ownerID string) error
		Status(ctx context.Context, ownerID string) (*services.ConnectionStatus, error)
	}

	// HealthChecker reports database liveness, satisfied by
	// repomanager.Manager.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Server bundles the services behind the HTTP routes.
type Server struct {
	sync        SyncAPI
	transform   TransformAPI
	transcribe  TranscribeAPI
	recordings  RecordingAPI
	connections ConnectionAPI

	store     storage.Storage
	health    HealthChecker
	jwtSecret []byte
	logger    logging.Logger
}

type Config struct {
	Sync        SyncAPI
	Transform   TransformAPI
	Transcribe  TranscribeAPI
	Recordings  RecordingAPI
	Connections ConnectionAPI
	Store       storage.Storage
	Health      HealthChecker
	JWTSecret   []byte
	Logger      logging.Logger
}

func NewServer(cfg Config) *Server {
	return &Server{
		sync:        cfg.Sync,
		transform:   cfg.Transform,
		transcribe:  cfg.Transcribe,
		recordings:  cfg.Recordings,
		connections: cfg.Connections,
		store:       cfg.Store,
		health:      cfg.Health,
		jwtSecret:   cfg.JWTSecret,
		logger:      cfg.Logger.With("component", "httpapi"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/api/v1", s.authRequired())
	{
		v1.POST("/sync", s.runSync)

		v1.GET("/recordings", s.listRecordings)
		v1.POST("/recordings", s.uploadRecording)
		v1.GET("/recordings/:id", s.getRecording)
		v1.PATCH("/recordings/:id", s.renameRecording)
		v1.GET("/recordings/:id/url", s.recordingURL)
		v1.GET("/recordings/:id/transcription", s.getTranscription)
		v1.POST("/recordings/:id/remove-silence", s.removeSilence)
		v1.POST("/recordings/:id/split", s.splitRecording)
		v1.POST("/recordings/:id/transcribe", s.transcribeRecording)

		v1.PUT("/connection", s.setConnection)
		v1.GET("/connection", s.connectionStatus)
		v1.DELETE("/connection", s.deleteConnection)
	}
	return r
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.health.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": "database unreachable"})
		return
	}
	if err := s.store.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": "storage unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
