package speech

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/openplaud/plaudsync/internal/logging"
)

// WhisperEngine talks to an OpenAI-compatible transcription endpoint.
type WhisperEngine struct {
	client *openai.Client
	model  string
	logger logging.Logger

	// createTranscription is a test seam around the API call.
	createTranscription func(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

func NewWhisperEngine(apiKey, baseURL, model string, logger logging.Logger) *WhisperEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	e := &WhisperEngine{
		client: client,
		model:  model,
		logger: logger,
	}
	e.createTranscription = client.CreateTranscription
	return e
}

func (e *WhisperEngine) Model() string { return e.model }

// Transcribe requests the richest response shape the configured model
// supports: verbose JSON with segment metrics where available, plain text
// otherwise.
func (e *WhisperEngine) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	shape := ShapeForModel(e.model)

	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	}
	if shape == ShapeVerboseSegments {
		req.Format = openai.AudioResponseFormatVerboseJSON
	} else {
		req.Format = openai.AudioResponseFormatJSON
	}

	resp, err := e.createTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech engine: %w", err)
	}

	res := &Result{
		Shape:    shape,
		Text:     resp.Text,
		Language: resp.Language,
	}

	if shape == ShapeVerboseSegments {
		res.Segments = make([]Segment, 0, len(resp.Segments))
		for _, s := range resp.Segments {
			res.Segments = append(res.Segments, Segment{
				Start:            s.Start,
				End:              s.End,
				Text:             s.Text,
				AvgLogprob:       s.AvgLogprob,
				CompressionRatio: s.CompressionRatio,
				NoSpeechProb:     s.NoSpeechProb,
			})
		}
		// A verbose-capable model may still answer without segments;
		// degrade the tag so the pipeline skips metric passes.
		if len(res.Segments) == 0 {
			res.Shape = ShapePlainText
		}
	}

	return res, nil
}
