package audio

import "math"

const (
	// SilenceFloorDB is the lower clamp of the metering range. Silence and
	// anything quieter reports this value, never NaN or -Inf.
	SilenceFloorDB = -60.0

	// InactiveDB is the sentinel reported while no capture is active.
	InactiveDB = -160.0

	// fullScale is the int16 full-scale amplitude used for normalization.
	fullScale = 32768.0

	barRangeDB  = 30.0
	barExponent = 1.3
)

// Meter converts PCM frames into decibel loudness samples in [-60, 0].
// It is stateless; history retention belongs to the caller.
type Meter struct{}

// Sample computes the RMS level of a frame in decibels relative to
// full scale, clamped to [SilenceFloorDB, 0].
func (Meter) Sample(frame Frame) float64 {
	if len(frame.Samples) == 0 {
		return SilenceFloorDB
	}
	var sum float64
	for _, s := range frame.Samples {
		v := float64(s) / fullScale
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(frame.Samples)))
	if rms <= 0 {
		return SilenceFloorDB
	}
	return clamp(20*math.Log10(rms), SilenceFloorDB, 0)
}

// BarIntensity maps a decibel sample to a 0-1 display intensity for
// level bars. The exponent boosts contrast in the quiet range.
func BarIntensity(db float64) float64 {
	normalized := clamp((db+barRangeDB)/barRangeDB, 0, 1)
	return math.Pow(normalized, barExponent)
}

// History is a bounded rolling buffer of recent metering samples,
// oldest entries dropped first.
type History struct {
	samples []float64
	limit   int
}

// NewHistory creates a history retaining at most limit samples.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1
	}
	return &History{limit: limit}
}

// Push appends a sample, evicting the oldest when full.
func (h *History) Push(db float64) {
	if len(h.samples) >= h.limit {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, db)
}

// Samples returns a copy of the retained samples, oldest first.
func (h *History) Samples() []float64 {
	out := make([]float64, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return len(h.samples)
}

// Restore replaces the history contents, keeping only the most recent
// entries when the input exceeds the limit.
func (h *History) Restore(samples []float64) {
	if len(samples) > h.limit {
		samples = samples[len(samples)-h.limit:]
	}
	h.samples = append(h.samples[:0], samples...)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
