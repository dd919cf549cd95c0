package audioengine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ffprobe -of json output, reduced to the duration fields we read.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Duration string `json:"duration"`
	} `json:"streams"`
}

// ProbeDuration returns the audio duration in seconds, preferring the
// container-level value and falling back to the first stream. Transform
// validation relies on this being the output's real duration, not a
// size-ratio estimate: once the bitrate changes, size ratios lie.
func (e *Engine) ProbeDuration(ctx context.Context, audio []byte) (float64, error) {
	dir, err := os.MkdirTemp("", "probe-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	in, err := writeTemp(dir, "in-*.audio", audio)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutFor(len(audio)))
	defer cancel()

	out, err := e.runCommand(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration:stream=duration",
		"-of", "json",
		in,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}

	return parseProbeDuration(out)
}

func parseProbeDuration(raw []byte) (float64, error) {
	var p probeOutput
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	if d, ok := parseSeconds(p.Format.Duration); ok {
		return d, nil
	}
	for _, s := range p.Streams {
		if d, ok := parseSeconds(s.Duration); ok {
			return d, nil
		}
	}
	return 0, fmt.Errorf("ffprobe reported no duration")
}

func parseSeconds(s string) (float64, bool) {
	if s == "" || s == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
