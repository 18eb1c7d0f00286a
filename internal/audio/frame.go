package audio

import (
	"encoding/binary"
	"time"
)

// Frame is a fixed-length block of signed 16-bit mono PCM samples.
// Frames are produced once by the capture controller and handed to
// consumers read-only; a consumer that needs to retain samples past the
// callback must copy them.
type Frame struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// NewFrame wraps samples in a mono frame at the given sample rate.
func NewFrame(samples []int16, sampleRate int) Frame {
	return Frame{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   1,
	}
}

// Duration returns the play time of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// EncodePCM16 serializes samples as little-endian 16-bit PCM.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(sample))
	}
	return out
}

// DecodePCM16 parses little-endian 16-bit PCM into samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}
