package models

import "time"

// SyncConnection is the per-owner credential for the device cloud. The
// bearer token is sealed (AES-GCM) before it reaches the database; only
// the sync engine opens it.
type SyncConnection struct {
	ID     string
	UserID string

	EncryptedToken []byte
	TokenNonce     []byte

	// Endpoint is the selected API base URL.
	Endpoint string

	// LastSyncAt is updated after every sync attempt that found a
	// connection, successful or not.
	LastSyncAt *time.Time
}
