package audioengine

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openplaud/plaudsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestTimeoutFor(t *testing.T) {
	require.Equal(t, 30*time.Second, timeoutFor(0))
	require.Equal(t, 30*time.Second, timeoutFor(100))
	require.Equal(t, 32*time.Second, timeoutFor(1<<20))
	require.Equal(t, 10*time.Minute, timeoutFor(1<<30), "large inputs are capped at 10 minutes")
}

func TestClampThreshold(t *testing.T) {
	require.Equal(t, -80.0, clampThreshold(-100))
	require.Equal(t, -10.0, clampThreshold(0))
	require.Equal(t, -35.0, clampThreshold(-35))
}

func TestClampMinSilence(t *testing.T) {
	require.Equal(t, 0.1, clampMinSilence(0))
	require.Equal(t, 10.0, clampMinSilence(60))
	require.Equal(t, 1.5, clampMinSilence(1.5))
}

func TestSilenceRemoveFilter(t *testing.T) {
	f := silenceRemoveFilter(SilenceOpts{ThresholdDB: -35, MinSilenceSeconds: 1.5})
	require.Equal(t,
		"silenceremove=start_periods=1:start_threshold=-35.0dB:start_duration=1.50,"+
			"silenceremove=stop_periods=-1:stop_threshold=-35.0dB:stop_duration=1.50",
		f)
}

func TestSilenceRemoveFilter_ClampsOutOfRange(t *testing.T) {
	f := silenceRemoveFilter(SilenceOpts{ThresholdDB: -500, MinSilenceSeconds: 99})
	require.Contains(t, f, "start_threshold=-80.0dB")
	require.Contains(t, f, "start_duration=10.00")
}

func TestTrailingTrimFilter_IsReversible(t *testing.T) {
	f := trailingTrimFilter()
	require.True(t, strings.HasPrefix(f, "areverse,"))
	require.True(t, strings.HasSuffix(f, ",areverse"))
	require.Contains(t, f, "start_periods=1")
}

func TestSplit_RejectsNonPositiveSegment(t *testing.T) {
	e := New("ffmpeg", "ffprobe", testLogger())
	_, err := e.Split(context.Background(), []byte("x"), "opus", 0)
	require.Error(t, err)
}

func TestSplit_BuildsStreamCopyCommand(t *testing.T) {
	e := New("ffmpeg", "ffprobe", testLogger())

	var gotArgs []string
	e.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}

	parts, err := e.Split(context.Background(), []byte("fake-audio"), "opus", 3600)
	require.NoError(t, err)
	require.Empty(t, parts, "no output files were produced by the fake command")

	joined := strings.Join(gotArgs, " ")
	require.Contains(t, joined, "-map 0:a:0", "only the audio stream must be selected")
	require.Contains(t, joined, "-c copy", "split must not re-encode")
	require.Contains(t, joined, "-segment_time 3600")
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"format duration", `{"format":{"duration":"12.5"}}`, 12.5, false},
		{"stream fallback", `{"format":{"duration":"N/A"},"streams":[{"duration":"3.25"}]}`, 3.25, false},
		{"no duration anywhere", `{"format":{},"streams":[{}]}`, 0, true},
		{"zero duration is invalid", `{"format":{"duration":"0"}}`, 0, true},
		{"garbage", `not-json`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseProbeDuration([]byte(tc.raw))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeExt(t *testing.T) {
	require.Equal(t, "opus", normalizeExt(""))
	require.Equal(t, "mp3", normalizeExt(".mp3"))
	require.Equal(t, "opus", normalizeExt("opus"))
}
