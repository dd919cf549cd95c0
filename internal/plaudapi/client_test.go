package plaudapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openplaud/plaudsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-token", testLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c, srv
}

func TestListRecordings_Success(t *testing.T) {
	var gotAuth, gotQuery string

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[{"id":"f1","version_ms":"1700000000000","filename":"meeting.opus","duration":60000}]}`))
	}))

	files, err := c.ListRecordings(context.Background(), ListOptions{Limit: 50, SortField: "start_time", SortDesc: true})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "f1", files[0].ID)
	require.Equal(t, "1700000000000", files[0].Version)

	require.Equal(t, "Bearer test-token", gotAuth)
	require.Contains(t, gotQuery, "limit=50")
	require.Contains(t, gotQuery, "sort_order=desc")
}

func TestDo_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"files":[]}`))
	}))

	_, err := c.ListRecordings(context.Background(), ListOptions{Limit: 50})
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.ListRecordings(context.Background(), ListOptions{Limit: 50})
	require.Error(t, err)
	require.Equal(t, int32(maxAttempts), calls.Load())
}

func TestDo_FailsFastOn4xx(t *testing.T) {
	var calls atomic.Int32

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.DownloadURL(context.Background(), "missing", true)
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestDo_HonorsRetryAfterOn429(t *testing.T) {
	var calls atomic.Int32
	var slept []time.Duration

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"url":"https://signed.example/f1.opus"}`))
	}))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	u, err := c.DownloadURL(context.Background(), "f1", true)
	require.NoError(t, err)
	require.Equal(t, "https://signed.example/f1.opus", u)
	require.Equal(t, []time.Duration{7 * time.Second}, slept)
}

func TestRename_SendsPatch(t *testing.T) {
	var gotMethod, gotPath string

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.Rename(context.Background(), "f1", "renamed.opus"))
	require.Equal(t, http.MethodPatch, gotMethod)
	require.Equal(t, "/files/f1", gotPath)
}

func TestDownload_NoAuthHeader(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	c := NewClient("http://unused", "secret", testLogger())
	data, err := c.Download(context.Background(), srv.URL+"/tmp/f1.opus")
	require.NoError(t, err)
	require.Equal(t, []byte("audio-bytes"), data)
	require.Empty(t, gotAuth, "signed URLs must not leak the bearer token")
}

func TestParseRetryAfter(t *testing.T) {
	require.Equal(t, 5*time.Second, parseRetryAfter("5"))
	require.Equal(t, time.Duration(0), parseRetryAfter(""))
	require.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	require.Equal(t, time.Duration(0), parseRetryAfter("-3"))
}
