package events

import "time"

// Status is the lifecycle state a detector reports to its consumers.
type Status string

const (
	StatusListening Status = "LISTENING"
	StatusPaused    Status = "PAUSED"
	StatusError     Status = "ERROR"
)

// Detection is the payload of EventWakeWordDetected.
type Detection struct {
	DetectorID string    `json:"detector_id"`
	Confidence float64   `json:"confidence"`
	Cycle      uint64    `json:"cycle"`
	At         time.Time `json:"timestamp"`
}

// Armed is the payload of EventWakeWordArmed.
type Armed struct {
	DetectorID string  `json:"detector_id"`
	Smoothed   float64 `json:"smoothed"`
	Cycle      uint64  `json:"cycle"`
}

// StatusChange is the payload of EventStatusChanged.
type StatusChange struct {
	DetectorID string `json:"detector_id"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// CycleError is the payload of EventInferenceError and EventError.
type CycleError struct {
	DetectorID string `json:"detector_id"`
	Cycle      uint64 `json:"cycle"`
	Err        error  `json:"-"`
}

// Error implements error.
func (e CycleError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e CycleError) Unwrap() error { return e.Err }
