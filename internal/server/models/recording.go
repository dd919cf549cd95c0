// Package models defines the data models persisted by plaudsync.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Synthetic plaudFileId prefixes mark recordings created locally (by a
// transform or a manual upload). They have no server-side counterpart on
// the device cloud and are excluded from remote filename sync.
const (
	PrefixSplit          = "split-"
	PrefixSilenceRemoved = "silence-removed-"
	PrefixUploaded       = "uploaded-"
)

// IsLocalOrigin reports whether a plaudFileId was generated locally.
func IsLocalOrigin(plaudFileID string) bool {
	return strings.HasPrefix(plaudFileID, PrefixSplit) ||
		strings.HasPrefix(plaudFileID, PrefixSilenceRemoved) ||
		strings.HasPrefix(plaudFileID, PrefixUploaded)
}

// SilenceRemovedFileID derives the synthetic id for a silence-removed copy
// of the given source recording. Repeated invocations on the same source
// converge on the same id, so registration is an upsert.
func SilenceRemovedFileID(sourceID string) string {
	return PrefixSilenceRemoved + sourceID
}

// SplitPartFileID derives the synthetic id for part n (1-based) of a split
// source recording.
func SplitPartFileID(sourceID string, n int) string {
	return fmt.Sprintf("%s%s-part%03d", PrefixSplit, sourceID, n)
}

// Recording is the central entity: a stored audio asset with device and
// remote provenance metadata.
type Recording struct {
	// ID is the surrogate row id (UUID).
	ID string
	// UserID is the owner.
	UserID string
	// DeviceSerial identifies the capture device.
	DeviceSerial string

	// PlaudFileID is the remote identifier, unique per owner. It doubles
	// as the idempotency/conflict key; locally-derived recordings carry a
	// prefixed synthetic value.
	PlaudFileID string
	// Version is the remote monotonically increasing version stamp
	// (string-encoded milliseconds). An unchanged stamp makes re-sync a
	// no-op; a changed stamp triggers re-download and update-in-place.
	Version string

	Filename   string
	DurationMS int64
	StartTime  time.Time
	EndTime    time.Time
	FileSize   int64
	Checksum   string

	// StorageBackend and StorageKey locate the audio blob.
	StorageBackend string
	StorageKey     string
	DownloadedAt   time.Time

	// Device metadata.
	Timezone    string
	ZoneMinutes int
	Scene       int

	Trashed   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
