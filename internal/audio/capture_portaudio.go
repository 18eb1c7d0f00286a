package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend captures mono int16 samples from an input device via
// PortAudio. The zero device index selects the platform default.
type PortAudioBackend struct {
	sampleRate      int
	framesPerBuffer int
	deviceIndex     int

	stream    *portaudio.Stream
	streaming bool
}

// NewPortAudioBackend creates a backend for the given sample rate.
func NewPortAudioBackend(sampleRate, framesPerBuffer, deviceIndex int) *PortAudioBackend {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &PortAudioBackend{
		sampleRate:      sampleRate,
		framesPerBuffer: framesPerBuffer,
		deviceIndex:     deviceIndex,
	}
}

// Start opens and starts the input stream. Every failure path terminates
// PortAudio so the device is never left acquired.
func (b *PortAudioBackend) Start(onSamples func([]int16)) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := b.inputDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(b.sampleRate),
		FramesPerBuffer: b.framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		onSamples(in)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	b.stream = stream
	b.streaming = true
	return nil
}

// Stop stops and closes the stream and terminates PortAudio. Idempotent.
func (b *PortAudioBackend) Stop() error {
	if !b.streaming {
		return nil
	}
	b.streaming = false

	var firstErr error
	if err := b.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("stop input stream: %w", err)
	}
	if err := b.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close input stream: %w", err)
	}
	b.stream = nil
	portaudio.Terminate()
	return firstErr
}

// IsStreaming reports whether the input stream is running.
func (b *PortAudioBackend) IsStreaming() bool {
	return b.streaming
}

func (b *PortAudioBackend) inputDevice() (*portaudio.DeviceInfo, error) {
	if b.deviceIndex <= 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if b.deviceIndex >= len(devices) {
		return nil, fmt.Errorf("invalid device index %d", b.deviceIndex)
	}
	device := devices[b.deviceIndex]
	if device.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %q is not an input device", device.Name)
	}
	return device, nil
}
