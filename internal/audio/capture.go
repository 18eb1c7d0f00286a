package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/logging"
)

// Capture errors surfaced to the caller of Start.
var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrPermissionDenied  = errors.New("microphone permission denied")
)

// Permission is the result of a microphone permission query.
type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionGranted
	PermissionDenied
)

// PermissionFunc queries the platform permission state. Anything but
// PermissionGranted fails Start.
type PermissionFunc func() Permission

// Backend abstracts a platform capture source (PortAudio, browser audio
// graph, test fake). The onSamples callback may run on a real-time
// thread and must not block.
type Backend interface {
	Start(onSamples func([]int16)) error
	Stop() error
	IsStreaming() bool
}

// ChunkConsumer receives each framed chunk. Consumers run sequentially
// on the dispatcher goroutine and must not retain the frame's samples.
type ChunkConsumer func(Frame)

// LevelConsumer receives one metering sample per chunk.
type LevelConsumer func(db float64)

// DefaultChunkDuration is the capture framing interval.
const DefaultChunkDuration = 256 * time.Millisecond

// ControllerConfig configures a capture controller.
type ControllerConfig struct {
	SampleRate    int
	ChunkDuration time.Duration
	Permission    PermissionFunc
}

// Controller owns the capture lifecycle: it acquires the backend, frames
// incoming samples into fixed-duration chunks, and fans each chunk out to
// registered consumers from a single dispatcher goroutine. The backend
// callback only copies samples into a buffered channel; when the
// dispatcher falls behind, samples are dropped rather than blocking the
// device thread.
type Controller struct {
	backend Backend
	cfg     ControllerConfig
	meter   Meter
	log     zerolog.Logger

	mu        sync.Mutex
	active    bool
	consumers []ChunkConsumer
	onChunk   ChunkConsumer
	onLevel   LevelConsumer

	incoming chan []int16
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewController creates a controller over the given backend.
func NewController(backend Backend, cfg ControllerConfig) *Controller {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = DefaultChunkDuration
	}
	return &Controller{
		backend: backend,
		cfg:     cfg,
		log:     logging.WithComponent("capture"),
	}
}

// RegisterConsumer adds a chunk consumer. Consumers registered while
// capturing receive chunks starting with the next one.
func (c *Controller) RegisterConsumer(consumer ChunkConsumer) {
	c.mu.Lock()
	c.consumers = append(c.consumers, consumer)
	c.mu.Unlock()
}

// Start acquires the device and begins chunk dispatch. Calling Start
// while active is a logged no-op. Device and permission failures are
// returned as typed errors; every failure path releases the backend.
func (c *Controller) Start(onChunk ChunkConsumer, onLevel LevelConsumer) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		c.log.Warn().Msg("capture already active, ignoring start")
		return nil
	}

	if c.cfg.Permission != nil {
		switch perm := c.cfg.Permission(); perm {
		case PermissionGranted:
		default:
			c.mu.Unlock()
			return fmt.Errorf("%w: permission state %d", ErrPermissionDenied, perm)
		}
	}

	c.onChunk = onChunk
	c.onLevel = onLevel
	c.incoming = make(chan []int16, 32)
	c.done = make(chan struct{})
	c.mu.Unlock()

	if err := c.backend.Start(c.onSamples); err != nil {
		c.release()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	// Partial setup: the backend accepted Start but never began
	// streaming. Release the device instead of dispatching nothing.
	if !c.backend.IsStreaming() {
		if err := c.backend.Stop(); err != nil {
			c.log.Error().Err(err).Msg("backend release after failed setup")
		}
		c.release()
		return fmt.Errorf("%w: backend not streaming after start", ErrDeviceUnavailable)
	}

	chunkSamples := int(float64(c.cfg.SampleRate) * c.cfg.ChunkDuration.Seconds())
	c.wg.Add(1)
	go c.dispatch(chunkSamples)

	c.mu.Lock()
	c.active = true
	c.mu.Unlock()

	c.log.Info().
		Int("sampleRate", c.cfg.SampleRate).
		Dur("chunk", c.cfg.ChunkDuration).
		Msg("capture started")
	return nil
}

// Stop halts capture and releases the device. Safe to call at any time,
// including mid-setup, and idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	done := c.done
	c.mu.Unlock()

	if err := c.backend.Stop(); err != nil {
		c.log.Error().Err(err).Msg("backend stop")
	}
	close(done)
	c.wg.Wait()
	c.release()
	c.log.Info().Msg("capture stopped")
}

// IsActive reports whether a capture session is running.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) release() {
	c.mu.Lock()
	c.incoming = nil
	c.done = nil
	c.onChunk = nil
	c.onLevel = nil
	c.mu.Unlock()
}

// onSamples runs on the backend's real-time thread. It copies the
// samples and hands off without blocking.
func (c *Controller) onSamples(in []int16) {
	c.mu.Lock()
	incoming := c.incoming
	c.mu.Unlock()
	if incoming == nil {
		return
	}

	buf := make([]int16, len(in))
	copy(buf, in)
	select {
	case incoming <- buf:
	default:
		// Dispatcher is behind; dropping beats blocking the device thread.
	}
}

func (c *Controller) dispatch(chunkSamples int) {
	defer c.wg.Done()

	c.mu.Lock()
	incoming := c.incoming
	done := c.done
	c.mu.Unlock()

	buf := make([]int16, 0, chunkSamples*2)
	for {
		select {
		case <-done:
			return
		case samples := <-incoming:
			buf = append(buf, samples...)
			for len(buf) >= chunkSamples {
				chunk := make([]int16, chunkSamples)
				copy(chunk, buf[:chunkSamples])
				buf = append(buf[:0], buf[chunkSamples:]...)
				c.emit(NewFrame(chunk, c.cfg.SampleRate))
			}
		}
	}
}

func (c *Controller) emit(frame Frame) {
	c.mu.Lock()
	consumers := append([]ChunkConsumer(nil), c.consumers...)
	onChunk := c.onChunk
	onLevel := c.onLevel
	c.mu.Unlock()

	if onChunk != nil {
		onChunk(frame)
	}
	for _, consume := range consumers {
		consume(frame)
	}
	if onLevel != nil {
		onLevel(c.meter.Sample(frame))
	}
}
