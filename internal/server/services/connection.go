package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openplaud/plaudsync/internal/common"
	"github.com/openplaud/plaudsync/internal/cryptox"
	"github.com/openplaud/plaudsync/internal/logging"
	"github.com/openplaud/plaudsync/internal/server/models"
	"github.com/openplaud/plaudsync/internal/server/repositories/repomanager"
)

// DefaultEndpoint is the device cloud API base used when the owner does
// not pick one.
const DefaultEndpoint = "https://api.plaud.ai"

// ConnectionStatus is the owner-visible view of a connection. The token
// never leaves the service.
type ConnectionStatus struct {
	Connected  bool       `json:"connected"`
	Endpoint   string     `json:"endpoint,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// ConnectionService manages the owner's device cloud credential. Tokens
// are sealed before they reach the database.
type ConnectionService struct {
	repos  repomanager.Manager
	sealer *cryptox.Sealer
	logger logging.Logger
}

func NewConnectionService(repos repomanager.Manager, sealer *cryptox.Sealer, logger logging.Logger) *ConnectionService {
	return &ConnectionService{
		repos:  repos,
		sealer: sealer,
		logger: logger.With("service", "connection"),
	}
}

// Set stores (or replaces) the owner's bearer token.
func (s *ConnectionService) Set(ctx context.Context, ownerID, token, endpoint string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", common.ErrValidation)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	ciphertext, nonce, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	conn := &models.SyncConnection{
		ID:             uuid.NewString(),
		UserID:         ownerID,
		EncryptedToken: ciphertext,
		TokenNonce:     nonce,
		Endpoint:       endpoint,
	}
	if err := s.repos.Connections(s.repos.DB()).Upsert(ctx, conn); err != nil {
		return fmt.Errorf("store connection: %w", err)
	}
	s.logger.Info(ctx, "connection stored", "owner", ownerID, "endpoint", endpoint)
	return nil
}

// Disconnect removes the stored credential. Removing a non-existent
// connection is not an error.
func (s *ConnectionService) Disconnect(ctx context.Context, ownerID string) error {
	return s.repos.Connections(s.repos.DB()).Delete(ctx, ownerID)
}

// Status reports whether the owner is connected and when they last synced.
func (s *ConnectionService) Status(ctx context.Context, ownerID string) (*ConnectionStatus, error) {
	conn, err := s.repos.Connections(s.repos.DB()).GetByUser(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &ConnectionStatus{Connected: false}, nil
		}
		return nil, err
	}
	return &ConnectionStatus{
		Connected:  true,
		Endpoint:   conn.Endpoint,
		LastSyncAt: conn.LastSyncAt,
	}, nil
}
