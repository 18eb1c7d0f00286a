package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultFFTSize is the analysis window length for spectral processing.
const DefaultFFTSize = 2048

// Analyzer computes normalized per-bin magnitude spectra from PCM frames
// using a Hann-windowed real FFT. Not safe for concurrent use; each
// session owns one analyzer.
type Analyzer struct {
	fftSize int
	window  []float64
	fft     *fourier.FFT
	scratch []float64
	coeffs  []complex128
}

// NewAnalyzer creates an analyzer with the given window length.
// Non-positive sizes fall back to DefaultFFTSize.
func NewAnalyzer(fftSize int) *Analyzer {
	if fftSize <= 0 {
		fftSize = DefaultFFTSize
	}
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	return &Analyzer{
		fftSize: fftSize,
		window:  window,
		fft:     fourier.NewFFT(fftSize),
		scratch: make([]float64, fftSize),
		coeffs:  make([]complex128, fftSize/2+1),
	}
}

// FFTSize returns the analysis window length.
func (a *Analyzer) FFTSize() int {
	return a.fftSize
}

// BinCount returns the number of frequency bins produced per analysis.
func (a *Analyzer) BinCount() int {
	return a.fftSize / 2
}

// Magnitudes returns the magnitude spectrum of one analysis window of the
// frame, normalized to [0, 1]. Frames shorter than the window are
// zero-padded; longer frames contribute only their first window.
func (a *Analyzer) Magnitudes(frame Frame) []float64 {
	for i := range a.scratch {
		a.scratch[i] = 0
	}
	n := len(frame.Samples)
	if n > a.fftSize {
		n = a.fftSize
	}
	for i := 0; i < n; i++ {
		a.scratch[i] = float64(frame.Samples[i]) / fullScale * a.window[i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.scratch)

	out := make([]float64, a.BinCount())
	scale := 2.0 / float64(a.fftSize)
	for i := range out {
		out[i] = clamp(cmplx.Abs(a.coeffs[i])*scale, 0, 1)
	}
	return out
}
