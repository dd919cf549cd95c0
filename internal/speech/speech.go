// Package speech wraps the external speech-to-text service. The response
// shape depends on the selected model: richer models return segment-level
// quality metrics which the transcription pipeline's hallucination filter
// consumes; simpler models return plain text only.
package speech

import (
	"context"
)

// Shape tags the response variant a transcription produced. It replaces
// runtime property probing with an explicit capability lookup.
type Shape int

const (
	// ShapePlainText carries text only.
	ShapePlainText Shape = iota

	// ShapeVerboseSegments carries per-segment timing and quality metrics.
	ShapeVerboseSegments

	// ShapeDiarized additionally carries speaker labels per segment.
	ShapeDiarized
)

// Segment is one timed span of the transcript with the quality metrics the
// hallucination filter reads.
type Segment struct {
	Start float64
	End   float64
	Text  string

	// AvgLogprob is the mean token log-probability; very low values mark
	// low-confidence (often fabricated) tails.
	AvgLogprob float64

	// CompressionRatio rises sharply on repetitive (looping) text.
	CompressionRatio float64

	// NoSpeechProb is the model's probability that the span holds no speech.
	NoSpeechProb float64

	// Speaker is set only for ShapeDiarized results.
	Speaker string
}

// Result is the tagged transcription outcome.
type Result struct {
	Shape    Shape
	Text     string
	Language string
	Segments []Segment
}

// HasSegments reports whether the result carries usable segment metrics.
func (r *Result) HasSegments() bool {
	return (r.Shape == ShapeVerboseSegments || r.Shape == ShapeDiarized) && len(r.Segments) > 0
}

// Engine converts audio to text.
type Engine interface {
	// Transcribe sends audio (with a filename hint for container
	// detection) to the speech service.
	Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error)

	// Model returns the configured model identifier for persistence.
	Model() string
}

// modelShapes is the capability lookup: which response shape each known
// model can serve. Unknown models fall back to plain text.
var modelShapes = map[string]Shape{
	"whisper-1":              ShapeVerboseSegments,
	"gpt-4o-transcribe":      ShapePlainText,
	"gpt-4o-mini-transcribe": ShapePlainText,
}

// ShapeForModel returns the richest response shape the model supports.
func ShapeForModel(model string) Shape {
	if s, ok := modelShapes[model]; ok {
		return s
	}
	return ShapePlainText
}
