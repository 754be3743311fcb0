// Package batch owns the one-at-a-time upload and classification lifecycle
// of a user-supplied traffic file.
package batch

import (
	"nids-console/internal/convert"
	"nids-console/internal/report"
)

// State is a step of the submission lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateConverting State = "converting"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Busy reports whether a submission is running in this state.
func (s State) Busy() bool {
	return s == StateConverting || s == StateSubmitting
}

// Session is an immutable snapshot of the controller for presentation.
type Session struct {
	FileName string
	Format   convert.Format
	State    State
	InFlight bool

	// Progress is the estimated completion in percent.
	Progress int

	Results  []report.Prediction
	Stats    report.Stats
	HasStats bool

	// SavedCount is the number of rows the classifier reports as persisted.
	SavedCount int

	// Err is the failure of the last action, Message its user-facing text.
	Err     error
	Message string
}

// HasFile reports whether a file is selected.
func (s Session) HasFile() bool {
	return s.FileName != ""
}

// Persisted reports whether the classifier stored any of the last batch.
func (s Session) Persisted() bool {
	return s.SavedCount > 0
}

// Preview returns at most n leading results.
func (s Session) Preview(n int) []report.Prediction {
	if n < 0 || n >= len(s.Results) {
		return s.Results
	}
	return s.Results[:n]
}
