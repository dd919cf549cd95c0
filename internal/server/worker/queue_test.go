package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplaud/plaudsync/internal/logging"
)

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestQueue_RunsJobsInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	q := NewQueue(func(_ context.Context, job Job) error {
		mu.Lock()
		got = append(got, job.RecordingID)
		mu.Unlock()
		return nil
	}, newTestLogger())

	require.True(t, q.Enqueue(Job{UserID: "u1", RecordingID: "a"}))
	require.True(t, q.Enqueue(Job{UserID: "u1", RecordingID: "b"}))
	require.True(t, q.Enqueue(Job{UserID: "u1", RecordingID: "c"}))

	q.Start(context.Background())
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueue_JobErrorDoesNotStopConsumer(t *testing.T) {
	var mu sync.Mutex
	var got []string

	q := NewQueue(func(_ context.Context, job Job) error {
		mu.Lock()
		got = append(got, job.RecordingID)
		mu.Unlock()
		if job.RecordingID == "bad" {
			return errors.New("boom")
		}
		return nil
	}, newTestLogger())

	require.True(t, q.Enqueue(Job{RecordingID: "bad"}))
	require.True(t, q.Enqueue(Job{RecordingID: "good"}))

	q.Start(context.Background())
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"bad", "good"}, got)
}

func TestQueue_EnqueueAfterCloseReturnsFalse(t *testing.T) {
	q := NewQueue(func(context.Context, Job) error { return nil }, newTestLogger())
	q.Start(context.Background())
	q.Close()

	assert.False(t, q.Enqueue(Job{RecordingID: "late"}))
}

func TestQueue_EnqueueFullReturnsFalse(t *testing.T) {
	q := NewQueue(func(context.Context, Job) error { return nil }, newTestLogger())

	// Fill the buffer before the consumer starts.
	for i := 0; i < defaultQueueSize; i++ {
		require.True(t, q.Enqueue(Job{RecordingID: "r"}))
	}
	assert.False(t, q.Enqueue(Job{RecordingID: "overflow"}))

	q.Start(context.Background())
	q.Close()
}
