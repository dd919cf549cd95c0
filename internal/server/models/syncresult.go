package models

// SyncResult is the ephemeral outcome of one sync run. It is never
// persisted. Partial failures are accumulated in Errors rather than
// aborting the run, so a caller always receives a result.
type SyncResult struct {
	NewRecordings     int      `json:"new_recordings"`
	UpdatedRecordings int      `json:"updated_recordings"`
	SkippedRecordings int      `json:"skipped_recordings"`
	Errors            []string `json:"errors,omitempty"`

	// PendingTranscription lists recording ids queued for background
	// transcription when auto-transcribe is enabled.
	PendingTranscription []string `json:"pending_transcription,omitempty"`
}

// AddError records a per-item failure without aborting the sync.
func (r *SyncResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
