package audio

import (
	"math"
	"math/rand"
	"testing"
)

const testFFTSize = 256

func noiseFrame(rng *rand.Rand, sampleRate, samples int) Frame {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(rng.Intn(8000) - 4000)
	}
	return NewFrame(pcm, sampleRate)
}

func TestSuppressorUnprofiledIsIdentity(t *testing.T) {
	s := NewSuppressor(NewAnalyzer(testFFTSize), DefaultSuppressorOptions())

	spectrum := []float64{0, 0.1, 0.5, 0.9, 1.0}
	got := s.Suppress(spectrum)

	for i := range spectrum {
		if got[i] != spectrum[i] {
			t.Errorf("bin %d changed without a profile: %f -> %f", i, spectrum[i], got[i])
		}
	}
}

func TestSuppressorProfiledNoiseBoundedByFloor(t *testing.T) {
	analyzer := NewAnalyzer(testFFTSize)
	s := NewSuppressor(analyzer, DefaultSuppressorOptions())

	rng := rand.New(rand.NewSource(7))
	frame := noiseFrame(rng, 16000, testFFTSize)

	// Profile on the noise itself: subtracting twice the profile must
	// push every bin down to the protected floor.
	s.Profile([]Frame{frame})
	if !s.Profiled() {
		t.Fatal("suppressor should be profiled")
	}

	got := s.Suppress(analyzer.Magnitudes(frame))
	for i, mag := range got {
		if mag > 0.02+1e-9 {
			t.Errorf("bin %d = %f, want <= noise floor 0.02", i, mag)
		}
	}
}

func TestSuppressorZeroFramesIsNoop(t *testing.T) {
	s := NewSuppressor(NewAnalyzer(testFFTSize), DefaultSuppressorOptions())

	s.Profile(nil)
	if s.Profiled() {
		t.Fatal("profiling with zero frames must not activate suppression")
	}

	spectrum := []float64{0.3, 0.6}
	got := s.Suppress(spectrum)
	if got[0] != 0.3 || got[1] != 0.6 {
		t.Errorf("suppressor should stay in identity mode, got %v", got)
	}
}

func TestSuppressorReset(t *testing.T) {
	analyzer := NewAnalyzer(testFFTSize)
	s := NewSuppressor(analyzer, DefaultSuppressorOptions())

	rng := rand.New(rand.NewSource(11))
	s.Profile([]Frame{noiseFrame(rng, 16000, testFFTSize)})
	s.Reset()

	if s.Profiled() {
		t.Fatal("reset should discard the noise profile")
	}
	spectrum := []float64{0.25, 0.75}
	got := s.Suppress(spectrum)
	if got[0] != 0.25 || got[1] != 0.75 {
		t.Errorf("reset should restore identity mode, got %v", got)
	}
}

func TestSuppressorOutputStaysInRange(t *testing.T) {
	analyzer := NewAnalyzer(testFFTSize)
	opts := DefaultSuppressorOptions()
	opts.EnableNoiseFloor = false
	s := NewSuppressor(analyzer, opts)

	rng := rand.New(rand.NewSource(3))
	s.Profile([]Frame{noiseFrame(rng, 16000, testFFTSize)})

	spectrum := make([]float64, analyzer.BinCount())
	for i := range spectrum {
		spectrum[i] = rng.Float64()
	}
	for pass := 0; pass < 10; pass++ {
		for i, mag := range s.Suppress(spectrum) {
			if mag < 0 || mag > 1 {
				t.Fatalf("pass %d bin %d out of range: %f", pass, i, mag)
			}
		}
	}
}

func TestSuppressorSilenceProfileKeepsTone(t *testing.T) {
	analyzer := NewAnalyzer(testFFTSize)
	s := NewSuppressor(analyzer, DefaultSuppressorOptions())

	// Profile on silence: nothing should be subtracted from speech.
	silence := NewFrame(make([]int16, testFFTSize), 16000)
	s.Profile([]Frame{silence, silence, silence})

	amplitude := math.Pow(10, -10.0/20)
	tone := sineFrame(1000, amplitude, 16000, testFFTSize)
	spectrum := analyzer.Magnitudes(tone)

	peak, peakBin := 0.0, 0
	for i, mag := range spectrum {
		if mag > peak {
			peak, peakBin = mag, i
		}
	}
	if peak <= 0.02 {
		t.Fatalf("test tone too quiet to be meaningful, peak %f", peak)
	}

	// Smoothing converges toward the input across calls; after enough
	// passes the tone's energy must be preserved, not attenuated away.
	var got []float64
	for i := 0; i < 300; i++ {
		got = s.Suppress(spectrum)
	}
	if got[peakBin] < 0.9*peak {
		t.Errorf("tone bin %d attenuated to %f, want >= %f", peakBin, got[peakBin], 0.9*peak)
	}
}

func TestSuppressorOptionsMutableAtRuntime(t *testing.T) {
	analyzer := NewAnalyzer(testFFTSize)
	s := NewSuppressor(analyzer, DefaultSuppressorOptions())

	opts := s.Options()
	opts.SpectralSubtractionAmount = 0.5
	s.SetOptions(opts)

	if got := s.Options().SpectralSubtractionAmount; got != 0.5 {
		t.Errorf("subtraction amount = %f, want 0.5", got)
	}
}
