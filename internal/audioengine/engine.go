// Package audioengine wraps the external ffmpeg/ffprobe tools behind a
// subprocess adapter. It performs silence removal, stream-copy segment
// splitting, trailing-silence trimming, and duration probing. Every
// invocation carries a timeout scaled to the input size so a hung
// transcode cannot hold resources indefinitely.
package audioengine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openplaud/plaudsync/internal/logging"
)

const (
	minTimeout = 30 * time.Second
	maxTimeout = 10 * time.Minute

	// trailing-trim parameters: anything quieter than -50 dBFS for 0.3 s
	// at the end of the file is stripped before transcription.
	trailingTrimThresholdDB = -50.0
	trailingTrimMinSeconds  = 0.3

	// silence-removal output codec: fixed low-bitrate mp3.
	silenceRemovedBitrate = "64k"
)

// SilenceOpts parameterize silence removal. Values outside the valid
// ranges are clamped, not rejected: the owner's stored preference may
// predate a range change.
type SilenceOpts struct {
	// ThresholdDB is the silence-detection threshold in dBFS,
	// clamped to [-80, -10].
	ThresholdDB float64

	// MinSilenceSeconds is the shortest silence run that gets removed,
	// clamped to [0.1, 10].
	MinSilenceSeconds float64
}

// Engine shells out to ffmpeg and ffprobe.
type Engine struct {
	ffmpegPath  string
	ffprobePath string
	logger      logging.Logger

	// runCommand is a test seam around subprocess execution.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func New(ffmpegPath, ffprobePath string, logger logging.Logger) *Engine {
	e := &Engine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
	e.runCommand = e.execCommand
	return e
}

// execCommand runs a subprocess, returning stdout. Stderr is folded into
// the error because ffmpeg reports diagnostics there.
func (e *Engine) execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// timeoutFor scales a subprocess deadline with the input size: a base of
// 30 s plus 2 s per MiB, capped at 10 minutes.
func timeoutFor(sizeBytes int) time.Duration {
	d := minTimeout + time.Duration(sizeBytes/(1<<20))*2*time.Second
	if d > maxTimeout {
		d = maxTimeout
	}
	return d
}

func clampThreshold(db float64) float64 {
	if db < -80 {
		return -80
	}
	if db > -10 {
		return -10
	}
	return db
}

func clampMinSilence(sec float64) float64 {
	if sec < 0.1 {
		return 0.1
	}
	if sec > 10 {
		return 10
	}
	return sec
}

// silenceRemoveFilter builds the ffmpeg audio filter that trims leading
// silence and removes every interior silence run longer than the minimum.
func silenceRemoveFilter(opts SilenceOpts) string {
	db := clampThreshold(opts.ThresholdDB)
	dur := clampMinSilence(opts.MinSilenceSeconds)
	return fmt.Sprintf(
		"silenceremove=start_periods=1:start_threshold=%.1fdB:start_duration=%.2f,"+
			"silenceremove=stop_periods=-1:stop_threshold=%.1fdB:stop_duration=%.2f",
		db, dur, db, dur)
}

// trailingTrimFilter strips trailing silence by reversing the stream,
// removing leading silence, and reversing back.
func trailingTrimFilter() string {
	return fmt.Sprintf(
		"areverse,silenceremove=start_periods=1:start_threshold=%.1fdB:start_duration=%.2f,areverse",
		trailingTrimThresholdDB, trailingTrimMinSeconds)
}

// writeTemp writes audio bytes to a temp file with the given extension and
// returns its path. Callers remove the containing directory.
func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// RemoveSilence trims leading silence and removes interior silence runs,
// re-encoding to a fixed low-bitrate mp3. The caller is expected to probe
// the output's duration before persisting anything.
func (e *Engine) RemoveSilence(ctx context.Context, audio []byte, opts SilenceOpts) ([]byte, error) {
	dir, err := os.MkdirTemp("", "silence-remove-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in, err := writeTemp(dir, "in-*.audio", audio)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "out.mp3")

	ctx, cancel := context.WithTimeout(ctx, timeoutFor(len(audio)))
	defer cancel()

	_, err = e.runCommand(ctx, e.ffmpegPath,
		"-y",
		"-i", in,
		"-af", silenceRemoveFilter(opts),
		"-c:a", "libmp3lame",
		"-b:a", silenceRemovedBitrate,
		out,
	)
	if err != nil {
		return nil, fmt.Errorf("remove silence: %w", err)
	}

	return os.ReadFile(out)
}

// TrimTrailingSilence strips silence from the end of the audio. The output
// keeps the source container so the speech engine sees the same format.
func (e *Engine) TrimTrailingSilence(ctx context.Context, audio []byte, ext string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "trailing-trim-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in, err := writeTemp(dir, "in-*."+normalizeExt(ext), audio)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "out."+normalizeExt(ext))

	ctx, cancel := context.WithTimeout(ctx, timeoutFor(len(audio)))
	defer cancel()

	_, err = e.runCommand(ctx, e.ffmpegPath,
		"-y",
		"-i", in,
		"-af", trailingTrimFilter(),
		out,
	)
	if err != nil {
		return nil, fmt.Errorf("trim trailing silence: %w", err)
	}

	return os.ReadFile(out)
}

// Split segments the audio into fixed-duration parts using stream copy
// (no re-encode). Only the audio stream is selected so embedded artwork or
// metadata streams cannot fail the copy. Parts are returned in order.
func (e *Engine) Split(ctx context.Context, audio []byte, ext string, segmentSeconds int) ([][]byte, error) {
	if segmentSeconds <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %d", segmentSeconds)
	}

	dir, err := os.MkdirTemp("", "split-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in, err := writeTemp(dir, "in-*."+normalizeExt(ext), audio)
	if err != nil {
		return nil, err
	}
	outPattern := filepath.Join(dir, "part-%03d."+normalizeExt(ext))

	ctx, cancel := context.WithTimeout(ctx, timeoutFor(len(audio)))
	defer cancel()

	_, err = e.runCommand(ctx, e.ffmpegPath,
		"-y",
		"-i", in,
		"-map", "0:a:0",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", segmentSeconds),
		outPattern,
	)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	names, err := filepath.Glob(filepath.Join(dir, "part-*."+normalizeExt(ext)))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	parts := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}
	return parts, nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return "opus"
	}
	return ext
}
