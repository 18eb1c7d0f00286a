package transcript

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/logging"
)

// ErrAlreadyCommitted is returned when an event tries to revise a
// committed segment. The transcript is left unchanged.
var ErrAlreadyCommitted = errors.New("segment already committed")

// Config tunes the fusion engine.
type Config struct {
	// SpeakerContinuityGap is the maximum gap in seconds below which a
	// segment without a speaker label inherits the speaker of the
	// nearest preceding committed segment.
	SpeakerContinuityGap float64

	// ReorderWindow documents the tolerated out-of-order arrival span in
	// seconds. Insertion is always by start time, so the window bounds
	// expectations rather than gating events.
	ReorderWindow float64
}

// DefaultConfig returns the default fusion tuning.
func DefaultConfig() Config {
	return Config{
		SpeakerContinuityGap: 3.0,
		ReorderWindow:        2.0,
	}
}

// Fusion merges partial/final events into a single ordered transcript.
// Ordering is by start time ascending, ties broken by insertion order.
// Not safe for concurrent use; the session event loop is the only caller.
type Fusion struct {
	cfg      Config
	segments []Segment
	index    map[string]int
	log      zerolog.Logger
}

// NewFusion creates an empty fusion engine.
func NewFusion(cfg Config) *Fusion {
	if cfg.SpeakerContinuityGap <= 0 {
		cfg.SpeakerContinuityGap = DefaultConfig().SpeakerContinuityGap
	}
	return &Fusion{
		cfg:   cfg,
		index: make(map[string]int),
		log:   logging.WithComponent("fusion"),
	}
}

// Apply merges one event into the transcript. It reports whether the
// transcript changed.
//
// Partial events upsert the segment in place; final events commit it and
// freeze the text. Events with empty text are ignored. A partial event
// for a committed id is rejected with ErrAlreadyCommitted; a duplicate
// final for a committed id is a no-op.
func (f *Fusion) Apply(ev Event) (bool, error) {
	if strings.TrimSpace(ev.Text) == "" {
		return false, nil
	}

	if pos, ok := f.index[ev.SegmentID]; ok {
		return f.update(pos, ev)
	}
	f.insert(ev)
	return true, nil
}

func (f *Fusion) update(pos int, ev Event) (bool, error) {
	current := f.segments[pos]
	if current.State == StateCommitted {
		if ev.IsFinal {
			return false, nil
		}
		f.log.Warn().
			Str("segmentId", ev.SegmentID).
			Msg("rejecting partial update for committed segment")
		return false, ErrAlreadyCommitted
	}

	updated := Segment{
		ID:        ev.SegmentID,
		Text:      ev.Text,
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Speaker:   ev.Speaker,
		State:     StatePartial,
	}
	if ev.IsFinal {
		updated.State = StateCommitted
	}
	if updated.Speaker == "" {
		// A revision without a label keeps the segment's own speaker
		// before falling back to continuity inheritance.
		updated.Speaker = current.Speaker
	}
	if updated.Speaker == "" {
		updated.Speaker = f.inheritSpeaker(pos, ev.StartTime)
	}

	if updated.StartTime != current.StartTime {
		f.removeAt(pos)
		f.insertSegment(updated)
		return true, nil
	}
	f.segments[pos] = updated
	return true, nil
}

func (f *Fusion) insert(ev Event) {
	seg := Segment{
		ID:        ev.SegmentID,
		Text:      ev.Text,
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Speaker:   ev.Speaker,
		State:     StatePartial,
	}
	if ev.IsFinal {
		seg.State = StateCommitted
	}
	f.insertSegment(seg)

	if seg.Speaker == "" {
		pos := f.index[seg.ID]
		if inherited := f.inheritSpeaker(pos, seg.StartTime); inherited != "" {
			f.segments[pos].Speaker = inherited
		}
	}
}

// insertSegment places seg at its temporal position: after every segment
// with an earlier or equal start time, preserving insertion order on ties.
func (f *Fusion) insertSegment(seg Segment) {
	pos := len(f.segments)
	for i, existing := range f.segments {
		if existing.StartTime > seg.StartTime {
			pos = i
			break
		}
	}

	f.segments = append(f.segments, Segment{})
	copy(f.segments[pos+1:], f.segments[pos:])
	f.segments[pos] = seg
	f.reindex(pos)
}

func (f *Fusion) removeAt(pos int) {
	delete(f.index, f.segments[pos].ID)
	f.segments = append(f.segments[:pos], f.segments[pos+1:]...)
	f.reindex(pos)
}

func (f *Fusion) reindex(from int) {
	for i := from; i < len(f.segments); i++ {
		f.index[f.segments[i].ID] = i
	}
}

// inheritSpeaker returns the speaker of the nearest preceding committed
// segment when the gap to startTime is within the continuity threshold.
func (f *Fusion) inheritSpeaker(pos int, startTime float64) string {
	for i := pos - 1; i >= 0; i-- {
		prev := f.segments[i]
		if prev.State != StateCommitted || prev.Speaker == "" {
			continue
		}
		if startTime-prev.EndTime <= f.cfg.SpeakerContinuityGap {
			return prev.Speaker
		}
		return ""
	}
	return ""
}

// Segments returns a copy of the transcript in display order.
func (f *Fusion) Segments() []Segment {
	out := make([]Segment, len(f.segments))
	copy(out, f.segments)
	return out
}

// Get returns the segment with the given id, if present.
func (f *Fusion) Get(id string) (Segment, bool) {
	pos, ok := f.index[id]
	if !ok {
		return Segment{}, false
	}
	return f.segments[pos], true
}

// Len returns the number of fused segments.
func (f *Fusion) Len() int {
	return len(f.segments)
}

// Restore seeds the transcript from a recovered draft. Existing contents
// are replaced; ordering is normalized by start time.
func (f *Fusion) Restore(segments []Segment) {
	f.segments = f.segments[:0]
	f.index = make(map[string]int, len(segments))
	for _, seg := range segments {
		if _, ok := f.index[seg.ID]; ok {
			continue
		}
		f.insertSegment(seg)
	}
}
