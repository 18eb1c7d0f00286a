package audio

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/logging"
)

// SuppressorOptions tunes spectral subtraction. Options may be changed
// at any time and affect subsequent Suppress calls only.
type SuppressorOptions struct {
	NoiseGateThreshold        float64 // dB, -80..0
	SpectralSubtractionAmount float64 // >= 0
	EnableNoiseFloor          bool
}

// DefaultSuppressorOptions returns the default tuning.
func DefaultSuppressorOptions() SuppressorOptions {
	return SuppressorOptions{
		NoiseGateThreshold:        -40,
		SpectralSubtractionAmount: 2.0,
		EnableNoiseFloor:          true,
	}
}

const (
	// noiseFloor is the minimum retained bin magnitude when floor
	// protection is on, avoiding full-silence artifacts.
	noiseFloor = 0.02

	// smoothingFactor controls frame-to-frame flicker suppression.
	smoothingFactor = 0.98
)

// Suppressor attenuates stationary noise via spectral subtraction against
// a learned noise profile. Until a profile is learned it is the identity:
// spectra pass through unchanged.
type Suppressor struct {
	mu       sync.Mutex
	opts     SuppressorOptions
	analyzer *Analyzer
	profile  []float64
	smoothed []float64
	log      zerolog.Logger
}

// NewSuppressor creates an unprofiled suppressor over the given analyzer.
func NewSuppressor(analyzer *Analyzer, opts SuppressorOptions) *Suppressor {
	return &Suppressor{
		opts:     opts,
		analyzer: analyzer,
		smoothed: make([]float64, analyzer.BinCount()),
		log:      logging.WithComponent("suppressor"),
	}
}

// Profile learns the noise profile as the per-bin arithmetic mean
// magnitude across the given frames, replacing any prior profile
// atomically. Zero frames is a no-op: suppression stays disabled.
func (s *Suppressor) Profile(frames []Frame) {
	if len(frames) == 0 {
		s.log.Warn().Msg("noise profiling skipped: no frames supplied")
		return
	}

	profile := make([]float64, s.analyzer.BinCount())
	for _, frame := range frames {
		for i, mag := range s.analyzer.Magnitudes(frame) {
			profile[i] += mag
		}
	}
	for i := range profile {
		profile[i] /= float64(len(frames))
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	s.log.Info().
		Int("bins", len(profile)).
		Int("frames", len(frames)).
		Msg("noise profile learned")
}

// Profiled reports whether a noise profile is active.
func (s *Suppressor) Profiled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile != nil
}

// Suppress applies spectral subtraction to a per-bin magnitude spectrum
// in [0, 1] and returns the suppressed spectrum, also in [0, 1]. Without
// a profile the input is returned unchanged.
func (s *Suppressor) Suppress(spectrum []float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, len(spectrum))
	if s.profile == nil {
		copy(out, spectrum)
		return out
	}

	for i, mag := range spectrum {
		var noise float64
		if i < len(s.profile) {
			noise = s.profile[i]
		}

		suppressed := mag - s.opts.SpectralSubtractionAmount*noise
		if s.opts.EnableNoiseFloor && suppressed < noiseFloor {
			suppressed = noiseFloor
		}

		if i < len(s.smoothed) {
			s.smoothed[i] = smoothingFactor*s.smoothed[i] + (1-smoothingFactor)*suppressed
			suppressed = s.smoothed[i]
		}

		out[i] = clamp(suppressed, 0, 1)
	}
	return out
}

// ProcessFrame analyzes one frame and returns its suppressed spectrum.
func (s *Suppressor) ProcessFrame(frame Frame) []float64 {
	return s.Suppress(s.analyzer.Magnitudes(frame))
}

// Reset discards the noise profile and smoothing state, returning the
// suppressor to identity mode.
func (s *Suppressor) Reset() {
	s.mu.Lock()
	s.profile = nil
	for i := range s.smoothed {
		s.smoothed[i] = 0
	}
	s.mu.Unlock()
	s.log.Info().Msg("noise profile reset")
}

// SetOptions replaces the suppression tuning.
func (s *Suppressor) SetOptions(opts SuppressorOptions) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}

// Options returns the current tuning.
func (s *Suppressor) Options() SuppressorOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}
