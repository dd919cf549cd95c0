// Package notify dispatches best-effort notifications after pipeline
// events. Delivery failures are logged and never fail the operation that
// triggered them.
package notify

import (
	"context"

	"github.com/openplaud/plaudsync/internal/logging"
)

// Event describes one notification.
type Event struct {
	Kind    string
	UserID  string
	Message string
}

const (
	KindSyncCompleted        = "sync_completed"
	KindTranscriptionDone    = "transcription_done"
	KindTranscriptionFailure = "transcription_failed"
)

// Notifier delivers an event over the owner's enabled channels. An empty
// channel list disables dispatch.
type Notifier interface {
	Notify(ctx context.Context, channels []string, event Event) error
}

// LogNotifier writes events to the structured log. It is the default sink
// and the fallback for unknown channel names.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, channels []string, event Event) error {
	n.logger.Info(ctx, "notification",
		"kind", event.Kind, "user_id", event.UserID,
		"channels", channels, "message", event.Message)
	return nil
}
