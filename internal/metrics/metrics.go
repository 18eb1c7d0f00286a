// Package metrics exposes pipeline counters via Prometheus plus a
// per-session summary for logs.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChunksProcessed counts PCM chunks framed by the capture controller.
	ChunksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecap_audio_chunks_total",
		Help: "PCM chunks framed and dispatched to consumers.",
	})

	// SegmentsCommitted counts transcript segments transitioned to committed.
	SegmentsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecap_segments_committed_total",
		Help: "Transcript segments committed by the fusion engine.",
	})

	// TranslationBatches counts dispatched translation requests.
	TranslationBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecap_translation_batches_total",
		Help: "Translation batch requests dispatched.",
	})

	// TranslationFailures counts failed translation batches.
	TranslationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecap_translation_failures_total",
		Help: "Translation batch requests that failed.",
	})

	// DraftWrites counts persisted draft snapshots.
	DraftWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livecap_draft_writes_total",
		Help: "Recording draft snapshots persisted.",
	})

	// InputLevelDB tracks the most recent metering sample.
	InputLevelDB = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livecap_input_level_db",
		Help: "Most recent input level in dBFS.",
	})
)

var registerOnce sync.Once

// Register installs the pipeline collectors on the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ChunksProcessed,
			SegmentsCommitted,
			TranslationBatches,
			TranslationFailures,
			DraftWrites,
			InputLevelDB,
		)
	})
}

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// SessionSummary accumulates per-session totals for the end-of-session log.
type SessionSummary struct {
	mu sync.Mutex

	SessionID       string
	StartTime       time.Time
	EndTime         time.Time
	AudioChunks     int
	AudioBytes      int
	PartialCount    int
	FinalCount      int
	TranslatedCount int
	FirstResultTime *time.Time
}

// NewSessionSummary starts a summary for the given session.
func NewSessionSummary(sessionID string) *SessionSummary {
	return &SessionSummary{
		SessionID: sessionID,
		StartTime: time.Now(),
	}
}

// AddChunk records one dispatched PCM chunk.
func (m *SessionSummary) AddChunk(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioChunks++
	m.AudioBytes += bytes
}

// AddTranscriptResult records one fused transcript event.
func (m *SessionSummary) AddTranscriptResult(isFinal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FirstResultTime == nil {
		now := time.Now()
		m.FirstResultTime = &now
	}
	if isFinal {
		m.FinalCount++
	} else {
		m.PartialCount++
	}
}

// AddTranslation records one completed segment translation.
func (m *SessionSummary) AddTranslation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranslatedCount++
}

// Finalize stamps the session end time.
func (m *SessionSummary) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

// Summary renders the totals for logging.
func (m *SessionSummary) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.EndTime.Sub(m.StartTime)
	var latency time.Duration
	if m.FirstResultTime != nil {
		latency = m.FirstResultTime.Sub(m.StartTime)
	}

	return fmt.Sprintf(
		"Session: %s\n"+
			"Duration: %v\n"+
			"Audio Chunks: %d\n"+
			"Audio Bytes: %d\n"+
			"First Result Latency: %v\n"+
			"Partial Results: %d\n"+
			"Final Results: %d\n"+
			"Translated Segments: %d\n",
		m.SessionID,
		duration,
		m.AudioChunks,
		m.AudioBytes,
		latency,
		m.PartialCount,
		m.FinalCount,
		m.TranslatedCount,
	)
}
