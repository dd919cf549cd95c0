package models

import "time"

// Transcription holds the cleaned transcript for a recording. Exactly one
// row exists per recording; a non-empty Text makes later transcription
// calls for the same recording a no-op.
type Transcription struct {
	ID          string
	RecordingID string

	Text     string
	Language string

	// Engine/Model/Provider identify what produced the text.
	Engine   string
	Model    string
	Provider string

	CreatedAt time.Time
	UpdatedAt time.Time
}
