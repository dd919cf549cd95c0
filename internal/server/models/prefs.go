package models

// Prefs are the owner preferences the pipeline reads. Settings management
// itself lives outside this service; these rows are read-mostly here.
type Prefs struct {
	UserID string

	// AutoTranscribe queues newly-synced recordings for background
	// transcription.
	AutoTranscribe bool

	// NotifyChannels lists enabled notification channels; empty disables
	// dispatch.
	NotifyChannels []string

	// Silence-removal parameters. Stored unclamped; the audio engine
	// clamps to its valid ranges.
	SilenceThresholdDB float64
	MinSilenceSeconds  float64

	// SplitSegmentMinutes is the segment length for the split transform.
	SplitSegmentMinutes int
}

// DefaultPrefs returns the preferences used when an owner has no stored
// row.
func DefaultPrefs(userID string) *Prefs {
	return &Prefs{
		UserID:              userID,
		AutoTranscribe:      false,
		SilenceThresholdDB:  -35,
		MinSilenceSeconds:   1.5,
		SplitSegmentMinutes: 60,
	}
}
