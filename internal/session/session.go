// Package session owns one recording: capture, metering history, noise
// suppression, transcript fusion, translation scheduling and draft
// autosave, serialized on a single event loop. A session is created per
// recording and torn down deterministically; no state outlives Stop.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/audio"
	"github.com/livecap/livecap/internal/draft"
	"github.com/livecap/livecap/internal/logging"
	"github.com/livecap/livecap/internal/metrics"
	"github.com/livecap/livecap/internal/transcript"
	"github.com/livecap/livecap/internal/translate"
	"github.com/livecap/livecap/internal/transport"
)

// DefaultMeteringHistoryLimit bounds the in-memory metering history.
const DefaultMeteringHistoryLimit = 1000

// Options tunes a session.
type Options struct {
	SampleRate           int
	ChunkDuration        time.Duration
	MeteringHistoryLimit int

	FFTSize        int
	Suppressor     audio.SuppressorOptions
	ProfileOnStart bool
	ProfileFrames  int

	Fusion    transcript.Config
	Translate translate.Options

	DraftKey      string
	DraftInterval time.Duration

	Permission audio.PermissionFunc
}

// Deps are the external collaborators a session drives.
type Deps struct {
	Backend    audio.Backend
	Store      draft.Store
	Translator translate.Client
	Events     <-chan transcript.Event
	Sender     *transport.Sender // optional audio egress
}

// SegmentView is a fused segment with its translation overlay, the shape
// handed to presentation.
type SegmentView struct {
	transcript.Segment
	TranslatedText    string           `json:"translatedText,omitempty"`
	TranslationStatus translate.Status `json:"translationStatus"`
}

// Session is one live recording.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	opts       Options
	controller *audio.Controller
	suppressor *audio.Suppressor
	fusion     *transcript.Fusion
	scheduler  *translate.Scheduler
	drafts     *draft.Manager
	sender     *transport.Sender
	events     <-chan transcript.Event
	summary    *metrics.SessionSummary
	log        zerolog.Logger

	mu            sync.Mutex
	duration      float64
	level         float64
	highlights    []draft.Highlight
	history       *audio.History
	spectrum      []float64
	profileFrames []audio.Frame

	chunks   chan audio.Frame
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New assembles a session from its options and collaborators.
func New(opts Options, deps Deps) *Session {
	if opts.MeteringHistoryLimit <= 0 {
		opts.MeteringHistoryLimit = DefaultMeteringHistoryLimit
	}
	if opts.ProfileFrames <= 0 {
		opts.ProfileFrames = 10
	}

	id := uuid.New()
	analyzer := audio.NewAnalyzer(opts.FFTSize)

	s := &Session{
		ID:        id,
		StartedAt: time.Now(),
		opts:      opts,
		suppressor: audio.NewSuppressor(analyzer, opts.Suppressor),
		fusion:     transcript.NewFusion(opts.Fusion),
		scheduler:  translate.NewScheduler(deps.Translator, opts.Translate),
		drafts:     draft.NewManager(deps.Store, opts.DraftKey, opts.DraftInterval),
		sender:     deps.Sender,
		events:     deps.Events,
		summary:    metrics.NewSessionSummary(id.String()),
		history:    audio.NewHistory(opts.MeteringHistoryLimit),
		level:      audio.InactiveDB,
		chunks:     make(chan audio.Frame, 16),
		done:       make(chan struct{}),
		log:        logging.WithSession("session", id.String()),
	}
	s.controller = audio.NewController(deps.Backend, audio.ControllerConfig{
		SampleRate:    opts.SampleRate,
		ChunkDuration: opts.ChunkDuration,
		Permission:    opts.Permission,
	})
	return s
}

// AttachSender wires an audio egress created after the session (the
// transport handshake needs the session id). Must be called before Start.
func (s *Session) AttachSender(sender *transport.Sender) {
	s.sender = sender
}

// Start begins capture, autosave and the event loop. On capture failure
// everything already started is torn back down and the error returned.
func (s *Session) Start() error {
	metrics.Register()

	s.drafts.Start(s.snapshot)

	s.wg.Add(1)
	go s.loop()

	if err := s.controller.Start(s.enqueueChunk, s.onLevel); err != nil {
		// Roll back through stopOnce so a later Stop stays a no-op
		// instead of closing done twice.
		s.stopOnce.Do(func() {
			s.drafts.Stop()
			close(s.done)
			s.wg.Wait()
		})
		return err
	}

	s.log.Info().Msg("session started")
	return nil
}

// Stop tears the session down: capture first, then the loop, then the
// scheduler and autosave. When clean is true the persisted draft is
// deleted; after a crash-like stop it is kept for recovery.
func (s *Session) Stop(ctx context.Context, clean bool) {
	s.stopOnce.Do(func() {
		s.controller.Stop()
		close(s.done)
		s.wg.Wait()

		s.scheduler.Flush(ctx)
		s.scheduler.Stop()
		for _, view := range s.TranscriptView() {
			if view.TranslationStatus == translate.StatusCompleted {
				s.summary.AddTranslation()
			}
		}

		s.drafts.Stop()
		if clean {
			if err := s.drafts.Clear(ctx); err != nil {
				s.log.Error().Err(err).Msg("draft cleanup failed")
			}
		}

		if s.sender != nil {
			if err := s.sender.Close(); err != nil {
				s.log.Warn().Err(err).Msg("transport close")
			}
		}

		s.mu.Lock()
		s.level = audio.InactiveDB
		s.mu.Unlock()

		s.summary.Finalize()
		s.log.Info().Msg("session stopped\n" + s.summary.Summary())
	})
}

// loop serializes chunk and transcript-event handling.
func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.chunks:
			s.handleChunk(frame)
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				continue
			}
			s.handleEvent(ev)
		}
	}
}

// enqueueChunk runs on the capture dispatcher. Chunks are dropped rather
// than blocking capture when the loop is behind.
func (s *Session) enqueueChunk(frame audio.Frame) {
	select {
	case s.chunks <- frame:
	default:
		s.log.Warn().Msg("dropping chunk, session loop behind")
	}
}

func (s *Session) onLevel(db float64) {
	s.mu.Lock()
	s.level = db
	s.history.Push(db)
	s.mu.Unlock()
	metrics.InputLevelDB.Set(db)
}

func (s *Session) handleChunk(frame audio.Frame) {
	metrics.ChunksProcessed.Inc()
	s.summary.AddChunk(len(frame.Samples) * 2)

	s.mu.Lock()
	s.duration += frame.Duration().Seconds()
	profiling := s.opts.ProfileOnStart && !s.suppressor.Profiled() &&
		len(s.profileFrames) < s.opts.ProfileFrames
	s.mu.Unlock()

	if profiling {
		s.collectProfileFrame(frame)
	}

	spectrum := s.suppressor.ProcessFrame(frame)
	s.mu.Lock()
	s.spectrum = spectrum
	s.mu.Unlock()

	if s.sender != nil {
		if err := s.sender.SendChunk(frame); err != nil {
			s.log.Warn().Err(err).Msg("audio egress failed")
		}
	}
}

// collectProfileFrame accumulates the leading chunks of the session as
// the noise-profile window, assuming the first moments are silence.
func (s *Session) collectProfileFrame(frame audio.Frame) {
	samples := make([]int16, len(frame.Samples))
	copy(samples, frame.Samples)

	s.mu.Lock()
	s.profileFrames = append(s.profileFrames, audio.NewFrame(samples, frame.SampleRate))
	ready := len(s.profileFrames) >= s.opts.ProfileFrames
	var frames []audio.Frame
	if ready {
		frames = s.profileFrames
		s.profileFrames = nil
	}
	s.mu.Unlock()

	if ready {
		s.suppressor.Profile(frames)
	}
}

func (s *Session) handleEvent(ev transcript.Event) {
	s.mu.Lock()
	changed, err := s.fusion.Apply(ev)
	var seg transcript.Segment
	var ok bool
	if changed {
		seg, ok = s.fusion.Get(ev.SegmentID)
	}
	s.mu.Unlock()

	if err != nil || !changed || !ok {
		return
	}

	s.summary.AddTranscriptResult(ev.IsFinal)
	if seg.State == transcript.StateCommitted {
		metrics.SegmentsCommitted.Inc()
		s.scheduler.OnCommitted(seg)
	} else {
		s.scheduler.OnPartial(seg)
	}
}

// AddHighlight marks the current position in the recording.
func (s *Session) AddHighlight(label string) draft.Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := draft.Highlight{
		ID:        uuid.NewString(),
		Timestamp: s.duration,
		Label:     label,
	}
	s.highlights = append(s.highlights, h)
	return h
}

// Resume seeds the session from a recovered draft.
func (s *Session) Resume(d *draft.Draft) {
	if d == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.StartedAt = d.StartedAt
	s.duration = d.Duration
	s.highlights = append(s.highlights[:0], d.Highlights...)
	s.history.Restore(d.MeteringHistory)
	s.fusion.Restore(d.Segments)
	s.log.Info().
		Str("draftId", d.ID).
		Float64("duration", d.Duration).
		Msg("session resumed from draft")
}

// snapshot samples the state persisted on each autosave tick.
func (s *Session) snapshot() draft.SaveParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	return draft.SaveParams{
		ID:              s.ID.String(),
		StartedAt:       s.StartedAt,
		Duration:        s.duration,
		Highlights:      append([]draft.Highlight(nil), s.highlights...),
		Segments:        s.fusion.Segments(),
		MeteringHistory: s.history.Samples(),
	}
}

// TranscriptView returns the fused transcript with translation overlay
// in display order.
func (s *Session) TranscriptView() []SegmentView {
	s.mu.Lock()
	segments := s.fusion.Segments()
	s.mu.Unlock()

	views := make([]SegmentView, len(segments))
	for i, seg := range segments {
		view := SegmentView{Segment: seg}
		if text, ok := s.scheduler.Text(seg.ID); ok {
			view.TranslatedText = text
		}
		view.TranslationStatus = s.scheduler.Status(seg.ID)
		views[i] = view
	}
	return views
}

// Level returns the most recent metering sample, or InactiveDB when not
// capturing.
func (s *Session) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Duration returns the elapsed captured audio in seconds.
func (s *Session) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// MeteringHistory returns the retained metering samples, oldest first.
func (s *Session) MeteringHistory() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Samples()
}

// Highlights returns the highlights marked so far.
func (s *Session) Highlights() []draft.Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]draft.Highlight(nil), s.highlights...)
}

// Spectrum returns the latest suppressed magnitude spectrum.
func (s *Session) Spectrum() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.spectrum...)
}

// Suppressor exposes the noise suppressor for profiling and tuning.
func (s *Session) Suppressor() *audio.Suppressor {
	return s.suppressor
}

// Scheduler exposes the translation scheduler for language changes.
func (s *Session) Scheduler() *translate.Scheduler {
	return s.scheduler
}

// Drafts exposes the draft manager for load/clear outside a session run.
func (s *Session) Drafts() *draft.Manager {
	return s.drafts
}
