package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/logging"
	"github.com/livecap/livecap/internal/metrics"
	"github.com/livecap/livecap/internal/transcript"
)

// Status is the translation state of a segment.
type Status int

const (
	StatusUntracked Status = iota
	StatusPending
	StatusCompleted
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUntracked:
		return "untracked"
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Options configures the scheduler.
type Options struct {
	Enabled        bool
	TargetLanguage string
	Debounce       time.Duration
	BatchDelay     time.Duration
}

// DefaultOptions returns the default scheduling intervals.
func DefaultOptions() Options {
	return Options{
		Debounce:   500 * time.Millisecond,
		BatchDelay: 300 * time.Millisecond,
	}
}

// Scheduler debounces, batches and caches translation work for fused
// segments. Partial text restarts a debounce timer; committed text is
// enqueued immediately. Enqueued items collect into one batch per batch
// delay, deduplicated against an exact-text cache scoped to the current
// target language. A failed batch marks its segments error and is not
// retried.
type Scheduler struct {
	client Client
	log    zerolog.Logger

	mu           sync.Mutex
	opts         Options
	cache        map[string]string // source text -> translated text
	translations map[string]string // segment id -> translated text
	status       map[string]Status
	queue        []Item

	debouncePending Item
	debounceTimer   *time.Timer
	batchTimer      *time.Timer

	generation int // bumped on language change to drop stale results
	stopped    bool
}

// NewScheduler creates a scheduler dispatching through client.
func NewScheduler(client Client, opts Options) *Scheduler {
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = defaults.BatchDelay
	}
	return &Scheduler{
		client:       client,
		opts:         opts,
		cache:        make(map[string]string),
		translations: make(map[string]string),
		status:       make(map[string]Status),
		log:          logging.WithComponent("translate"),
	}
}

// OnPartial restarts the debounce timer for a revised partial segment.
// The latest revision wins when the timer fires.
func (s *Scheduler) OnPartial(seg transcript.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Enabled || s.stopped {
		return
	}

	s.debouncePending = Item{ID: seg.ID, Text: seg.Text}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.opts.Debounce, s.fireDebounce)
}

// OnCommitted enqueues finalized text immediately, without debounce.
func (s *Scheduler) OnCommitted(seg transcript.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Enabled || s.stopped {
		return
	}
	s.enqueueLocked(Item{ID: seg.ID, Text: seg.Text})
}

func (s *Scheduler) fireDebounce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.debouncePending.ID == "" {
		return
	}
	item := s.debouncePending
	s.debouncePending = Item{}
	s.enqueueLocked(item)
}

func (s *Scheduler) enqueueLocked(item Item) {
	if strings.TrimSpace(item.Text) == "" {
		return
	}

	s.status[item.ID] = StatusPending
	s.queue = append(s.queue, item)

	// The timer collects further enqueues into the open batch; only the
	// first item of a batch arms it, so a steady stream of commits
	// cannot postpone dispatch.
	if len(s.queue) == 1 {
		if s.batchTimer != nil {
			s.batchTimer.Stop()
		}
		s.batchTimer = time.AfterFunc(s.opts.BatchDelay, func() {
			s.dispatch(context.Background())
		})
	}
}

// dispatch flushes the pending batch: cache hits complete immediately,
// misses go out as a single batched request.
func (s *Scheduler) dispatch(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}

	batch := s.queue
	s.queue = nil
	generation := s.generation
	targetLanguage := s.opts.TargetLanguage

	// Cache hits complete without a request; misses deduplicate by
	// exact source text so each text appears once in the request.
	request := make([]Item, 0, len(batch))
	textIDs := make(map[string][]string)
	for _, item := range batch {
		if cached, ok := s.cache[item.Text]; ok {
			s.translations[item.ID] = cached
			s.status[item.ID] = StatusCompleted
			continue
		}
		if _, seen := textIDs[item.Text]; !seen {
			request = append(request, item)
		}
		textIDs[item.Text] = append(textIDs[item.Text], item.ID)
	}
	s.mu.Unlock()

	if len(request) == 0 {
		return
	}

	metrics.TranslationBatches.Inc()
	results, err := s.client.TranslateBatch(ctx, request, targetLanguage)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// Target language changed mid-flight; results are stale.
		return
	}

	if err != nil {
		metrics.TranslationFailures.Inc()
		s.log.Error().Err(err).Int("items", len(request)).Msg("translation batch failed")
		for _, ids := range textIDs {
			for _, id := range ids {
				s.status[id] = StatusError
			}
		}
		return
	}

	requestText := make(map[string]string, len(request))
	for _, item := range request {
		requestText[item.ID] = item.Text
	}
	for _, result := range results {
		text, ok := requestText[result.ID]
		if !ok {
			continue
		}
		s.cache[text] = result.TranslatedText
		for _, id := range textIDs[text] {
			s.translations[id] = result.TranslatedText
			s.status[id] = StatusCompleted
		}
	}
}

// Flush synchronously enqueues any pending debounced item and dispatches
// the batch. Used on session teardown so committed text is not lost to a
// cancelled timer.
func (s *Scheduler) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.batchTimer != nil {
		s.batchTimer.Stop()
	}
	if s.debouncePending.ID != "" {
		item := s.debouncePending
		s.debouncePending = Item{}
		if !s.stopped && s.opts.Enabled {
			if strings.TrimSpace(item.Text) != "" {
				s.status[item.ID] = StatusPending
				s.queue = append(s.queue, item)
			}
		}
	}
	s.mu.Unlock()

	s.dispatch(ctx)
}

// SetTargetLanguage switches the target language, clearing the cache and
// resetting every per-segment status to untracked. Nothing is re-enqueued
// automatically.
func (s *Scheduler) SetTargetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lang == s.opts.TargetLanguage {
		return
	}

	s.opts.TargetLanguage = lang
	s.generation++
	s.cache = make(map[string]string)
	s.translations = make(map[string]string)
	s.status = make(map[string]Status)
	s.queue = nil
	s.debouncePending = Item{}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.batchTimer != nil {
		s.batchTimer.Stop()
	}
	s.log.Info().Str("targetLanguage", lang).Msg("translation cache cleared")
}

// SetEnabled toggles scheduling. Disabling does not clear existing
// translations; new work is simply not accepted.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.opts.Enabled = enabled
	s.mu.Unlock()
}

// Status returns the translation status for a segment id.
func (s *Scheduler) Status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

// Text returns the translated text for a segment id, if completed.
func (s *Scheduler) Text(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.translations[id]
	return text, ok
}

// Pending reports whether any segment is awaiting translation.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.status {
		if st == StatusPending {
			return true
		}
	}
	return false
}

// Stop cancels all timers. The scheduler accepts no further work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.batchTimer != nil {
		s.batchTimer.Stop()
	}
}
