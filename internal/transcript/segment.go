// Package transcript fuses an ordered stream of partial/final transcript
// events into a stable, display-ready transcript.
package transcript

import "fmt"

// State is the lifecycle state of a segment.
type State int

const (
	// StatePartial - segment may still be revised in place.
	StatePartial State = iota
	// StateCommitted - segment is finalized and frozen.
	StateCommitted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePartial:
		return "partial"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Event is one inbound transcript event from the recognition transport.
// Times are seconds from session start.
type Event struct {
	SegmentID string  `json:"segmentId"`
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Speaker   string  `json:"speaker,omitempty"`
	IsFinal   bool    `json:"isFinal"`
}

// Segment is one fused transcript fragment. Committed segments are
// immutable; partial segments may be replaced in place under the same id.
type Segment struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Speaker   string  `json:"speaker,omitempty"`
	State     State   `json:"state"`
}
