// Package services holds the application core: the sync engine, the audio
// transforms and the transcription pipeline. Services speak to the outside
// world through narrow interfaces so tests substitute hand fakes.
package services

import (
	"context"

	"github.com/openplaud/plaudsync/internal/audioengine"
	"github.com/openplaud/plaudsync/internal/plaudapi"
	"github.com/openplaud/plaudsync/internal/server/worker"
)

// DeviceClient is the device cloud surface the sync engine consumes,
// satisfied by *plaudapi.Client.
type DeviceClient interface {
	ListRecordings(ctx context.Context, opts plaudapi.ListOptions) ([]plaudapi.RemoteRecording, error)
	DownloadURL(ctx context.Context, fileID string, preferOpus bool) (string, error)
	Rename(ctx context.Context, fileID, filename string) error
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// DeviceClientFactory builds a client for one owner's connection. The
// token is the opened (plaintext) bearer token.
type DeviceClientFactory func(endpoint, token string) DeviceClient

// AudioEngine is the transform surface, satisfied by *audioengine.Engine.
type AudioEngine interface {
	RemoveSilence(ctx context.Context, audio []byte, opts audioengine.SilenceOpts) ([]byte, error)
	TrimTrailingSilence(ctx context.Context, audio []byte, ext string) ([]byte, error)
	Split(ctx context.Context, audio []byte, ext string, segmentSeconds int) ([][]byte, error)
	ProbeDuration(ctx context.Context, audio []byte) (float64, error)
}

// TranscribeQueue enqueues background transcription jobs, satisfied by
// *worker.Queue.
type TranscribeQueue interface {
	Enqueue(job worker.Job) bool
}
