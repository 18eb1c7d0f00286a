// Package draft persists crash-recovery snapshots of an in-flight
// recording session to a key-value store.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/logging"
	"github.com/livecap/livecap/internal/metrics"
	"github.com/livecap/livecap/internal/transcript"
)

const (
	// DefaultKey is the well-known storage key for the active session's draft.
	DefaultKey = "livecap:recording_draft"

	// DefaultInterval between autosaves.
	DefaultInterval = 10 * time.Second

	// meteringHistoryCap bounds the persisted metering samples; older
	// entries are dropped first.
	meteringHistoryCap = 1000
)

// Highlight marks a notable moment in a recording.
type Highlight struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
	Label     string  `json:"label,omitempty"`
}

// Draft is the crash-recovery snapshot of an in-flight session.
type Draft struct {
	ID              string               `json:"id"`
	StartedAt       time.Time            `json:"startedAt"`
	LastSavedAt     time.Time            `json:"lastSavedAt"`
	Duration        float64              `json:"duration"`
	Highlights      []Highlight          `json:"highlights"`
	Segments        []transcript.Segment `json:"segments,omitempty"`
	MeteringHistory []float64            `json:"meteringHistory"`
}

// SaveParams is the session state sampled on each autosave tick.
type SaveParams struct {
	ID              string
	StartedAt       time.Time
	Duration        float64
	Highlights      []Highlight
	Segments        []transcript.Segment
	MeteringHistory []float64
}

// Manager periodically persists a draft for the active session. Writes
// are best-effort: persistence failures are logged and swallowed so the
// session continues uninterrupted.
type Manager struct {
	store    Store
	key      string
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	done      chan struct{}
	wg        sync.WaitGroup
	lastSaved *SaveParams
}

// NewManager creates a manager writing to store under key.
func NewManager(store Store, key string, interval time.Duration) *Manager {
	if key == "" {
		key = DefaultKey
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		store:    store,
		key:      key,
		interval: interval,
		log:      logging.WithComponent("draft"),
	}
}

// Start performs one immediate save, then saves on the autosave interval
// until Stop. A tick is skipped when neither the duration nor the
// highlight count changed since the previous save.
func (m *Manager) Start(getSnapshot func() SaveParams) {
	m.mu.Lock()
	if m.done != nil {
		m.mu.Unlock()
		return
	}
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	params := getSnapshot()
	if err := m.Save(context.Background(), params); err != nil {
		m.log.Error().Err(err).Msg("initial draft save failed")
	} else {
		m.setLastSaved(params)
	}

	m.wg.Add(1)
	go m.autosave(done, getSnapshot)
	m.log.Info().Dur("interval", m.interval).Msg("autosave started")
}

func (m *Manager) autosave(done chan struct{}, getSnapshot func() SaveParams) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			params := getSnapshot()
			if !m.dirty(params) {
				continue
			}
			if err := m.Save(context.Background(), params); err != nil {
				m.log.Error().Err(err).Msg("draft autosave failed")
				continue
			}
			m.setLastSaved(params)
		}
	}
}

// dirty is the cheap change check: duration or highlight count. It does
// not deep-compare transcript content.
func (m *Manager) dirty(params SaveParams) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := m.lastSaved
	if last == nil {
		return true
	}
	return last.Duration != params.Duration || len(last.Highlights) != len(params.Highlights)
}

func (m *Manager) setLastSaved(params SaveParams) {
	m.mu.Lock()
	m.lastSaved = &params
	m.mu.Unlock()
}

// Stop cancels the autosave timer and clears the in-memory last-saved
// reference. The persisted draft is kept; deletion is Clear.
func (m *Manager) Stop() {
	m.mu.Lock()
	done := m.done
	m.done = nil
	m.lastSaved = nil
	m.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	m.wg.Wait()
	m.log.Info().Msg("autosave stopped")
}

// Save serializes and persists one draft snapshot.
func (m *Manager) Save(ctx context.Context, params SaveParams) error {
	history := params.MeteringHistory
	if len(history) > meteringHistoryCap {
		history = history[len(history)-meteringHistoryCap:]
	}

	d := Draft{
		ID:              params.ID,
		StartedAt:       params.StartedAt,
		LastSavedAt:     time.Now(),
		Duration:        params.Duration,
		Highlights:      params.Highlights,
		Segments:        params.Segments,
		MeteringHistory: history,
	}

	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := m.store.Set(ctx, m.key, blob); err != nil {
		return fmt.Errorf("persist draft: %w", err)
	}

	metrics.DraftWrites.Inc()
	m.log.Debug().
		Str("draftId", d.ID).
		Float64("duration", d.Duration).
		Msg("draft saved")
	return nil
}

// Load returns the most recent persisted draft, or nil when absent.
func (m *Manager) Load(ctx context.Context) (*Draft, error) {
	blob, err := m.store.Get(ctx, m.key)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if blob == nil {
		return nil, nil
	}

	var d Draft
	if err := json.Unmarshal(blob, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

// Clear deletes the persisted draft. Called on clean session completion.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Remove(ctx, m.key); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	m.log.Info().Msg("draft cleared")
	return nil
}
