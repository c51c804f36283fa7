package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on wake-word spans.
const (
	AttrDetectorID = "wakeword.detector_id"
	AttrCycle      = "wakeword.cycle"
	AttrState      = "wakeword.state"
	AttrScore      = "wakeword.score"
	AttrSmoothed   = "wakeword.smoothed"
	AttrDetected   = "wakeword.detected"
	AttrArmed      = "wakeword.armed"
	AttrSkipped    = "wakeword.skipped"

	AttrModelPath   = "model.path"
	AttrModelInputs = "model.inputs"

	AttrSessionID = "session.id"
	AttrChunkSize = "audio.chunk_size"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// DetectorAttrs identifies a detector cycle.
func DetectorAttrs(detectorID string, cycle uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDetectorID, detectorID),
		attribute.Int64(AttrCycle, int64(cycle)),
	}
}

// TriggerAttrs describes the trigger outcome of a cycle.
func TriggerAttrs(state string, score, smoothed float64, armed, detected bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrState, state),
		attribute.Float64(AttrScore, score),
		attribute.Float64(AttrSmoothed, smoothed),
		attribute.Bool(AttrArmed, armed),
		attribute.Bool(AttrDetected, detected),
	}
}

// ErrorAttrs creates attributes for errors.
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
