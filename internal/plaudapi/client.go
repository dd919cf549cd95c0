// Package plaudapi is the authenticated client for the recording capture
// device's cloud API. It supports paginated listing of remote recordings,
// temporary download URL issuance, filename updates, and raw audio download.
//
// Transient failures (network errors, 5xx, 429) are retried with bounded
// exponential backoff; other 4xx responses fail immediately. A 429 with a
// Retry-After header delays the next attempt by the server-supplied value.
package plaudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/openplaud/plaudsync/internal/logging"
)

const (
	// maxAttempts bounds total tries per request, including the first.
	maxAttempts = 3

	initialBackoff = 500 * time.Millisecond
	requestTimeout = 2 * time.Minute
)

// RemoteRecording is one item of the device cloud's recording listing.
type RemoteRecording struct {
	ID           string `json:"id"`
	Version      string `json:"version_ms"`
	Filename     string `json:"filename"`
	DeviceSerial string `json:"serial_number"`
	StartTimeMS  int64  `json:"start_time"`
	EndTimeMS    int64  `json:"end_time"`
	DurationMS   int64  `json:"duration"`
	FileSize     int64  `json:"filesize"`
	Checksum     string `json:"md5"`
	Timezone     string `json:"timezone"`
	ZoneMinutes  int    `json:"zone_offset"`
	Scene        int    `json:"scene"`
	Trashed      bool   `json:"is_trash"`
}

// ListOptions shape the recording listing request.
type ListOptions struct {
	Skip      int
	Limit     int
	Trashed   bool
	SortField string // e.g. "start_time"
	SortDesc  bool
}

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  logging.Logger

	// sleep is swapped out in tests so Retry-After handling stays fast.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(baseURL, token string, logger logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ListRecordings pages through the remote recording list. The device cloud
// sorts newest-first when SortDesc is set.
func (c *Client) ListRecordings(ctx context.Context, opts ListOptions) ([]RemoteRecording, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(opts.Skip))
	q.Set("limit", strconv.Itoa(opts.Limit))
	q.Set("is_trash", strconv.FormatBool(opts.Trashed))
	if opts.SortField != "" {
		q.Set("sort_by", opts.SortField)
	}
	if opts.SortDesc {
		q.Set("sort_order", "desc")
	} else {
		q.Set("sort_order", "asc")
	}

	var out struct {
		Files []RemoteRecording `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, "/files", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out.Files, nil
}

// DownloadURL asks the cloud for a temporary signed URL for the given
// recording. preferOpus requests the opus rendition; otherwise the original
// upload format is served.
func (c *Client) DownloadURL(ctx context.Context, fileID string, preferOpus bool) (string, error) {
	q := url.Values{}
	if preferOpus {
		q.Set("format", "opus")
	} else {
		q.Set("format", "original")
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/download-url", q, nil, &out); err != nil {
		return "", fmt.Errorf("download url for %s: %w", fileID, err)
	}
	return out.URL, nil
}

// Rename updates the remote filename of a recording.
func (c *Client) Rename(ctx context.Context, fileID, filename string) error {
	body := map[string]string{"filename": filename}
	if err := c.do(ctx, http.MethodPatch, "/files/"+url.PathEscape(fileID), nil, body, nil); err != nil {
		return fmt.Errorf("rename %s: %w", fileID, err)
	}
	return nil
}

// Download fetches audio bytes from a temporary signed URL. The URL embeds
// its own authorization, so no bearer token is attached.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte

	err := c.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if err := c.classifyStatus(ctx, resp); err != nil {
			return err
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	return c.withRetry(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if err := c.classifyStatus(ctx, resp); err != nil {
			return err
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(initialBackoff))
	return retry.Do(ctx, b, fn)
}

// classifyStatus maps an HTTP response to nil, a retryable error, or a
// terminal error. On 429 it honors a Retry-After delay before reporting
// the attempt as retryable.
func (c *Client) classifyStatus(ctx context.Context, resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if d := parseRetryAfter(resp.Header.Get("Retry-After")); d > 0 {
			c.logger.Warn(ctx, "device api rate limited", "retry_after", d.String())
			if err := c.sleep(ctx, d); err != nil {
				return err
			}
		}
		return retry.RetryableError(fmt.Errorf("device api: http 429"))
	case resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("device api: http %d", resp.StatusCode))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("device api: http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

// parseRetryAfter understands delay-seconds Retry-After values. HTTP-date
// values are rare from this API and fall back to the default backoff.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
