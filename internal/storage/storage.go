// Package storage provides the key-addressed blob store used for recording
// audio. Two backends exist: a local filesystem store and an S3-compatible
// store. Keys are owner-scoped paths such as
// "users/<owner>/recordings/<plaudFileId>.opus".
package storage

import (
	"context"
	"errors"
	"time"
)

// Backend tags persisted on Recording rows so a row always names the store
// holding its audio.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("storage: object not found")

// Storage is a key-addressed blob store.
type Storage interface {
	// Upload stores data under key, replacing any existing object.
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Download returns the object stored under key.
	Download(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object under key. Deleting an absent key is not
	// an error; compensating cleanup after a failed transform must be
	// idempotent.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a temporary URL from which the object can be read.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// TestConnection verifies the backend is reachable and writable enough
	// to serve uploads.
	TestConnection(ctx context.Context) error

	// Backend returns the backend tag stored on Recording rows.
	Backend() string
}
