package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/livecap/livecap/internal/transcript"
)

type countingStore struct {
	*MemoryStore
	mu   sync.Mutex
	sets int
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (s *countingStore) Set(ctx context.Context, key string, blob []byte) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, blob)
}

func (s *countingStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func staticSnapshot(params SaveParams) func() SaveParams {
	return func() SaveParams { return params }
}

func TestManagerSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", 0)

	started := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	params := SaveParams{
		ID:        "rec-1",
		StartedAt: started,
		Duration:  61.5,
		Highlights: []Highlight{
			{ID: "h1", Timestamp: 10.2, Label: "intro"},
		},
		Segments: []transcript.Segment{
			{ID: "s1", Text: "hello", StartTime: 0, EndTime: 1.5, State: transcript.StateCommitted},
		},
		MeteringHistory: []float64{-40, -35, -30},
	}

	if err := m.Save(context.Background(), params); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	d, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if d == nil {
		t.Fatal("draft missing after save")
	}
	if d.ID != "rec-1" || d.Duration != 61.5 {
		t.Errorf("draft = %+v, identity fields lost", d)
	}
	if !d.StartedAt.Equal(started) {
		t.Errorf("startedAt = %v, want %v", d.StartedAt, started)
	}
	if len(d.Highlights) != 1 || d.Highlights[0].Label != "intro" {
		t.Errorf("highlights = %v", d.Highlights)
	}
	if len(d.Segments) != 1 || d.Segments[0].State != transcript.StateCommitted {
		t.Errorf("segments = %v", d.Segments)
	}
	if d.LastSavedAt.IsZero() {
		t.Error("lastSavedAt not stamped")
	}
}

func TestManagerLoadAbsent(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", 0)

	d, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load errored on empty store: %v", err)
	}
	if d != nil {
		t.Errorf("want nil draft from empty store, got %+v", d)
	}
}

func TestManagerClear(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", 0)

	if err := m.Save(context.Background(), SaveParams{ID: "rec-1"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	d, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if d != nil {
		t.Error("draft survived clear")
	}
}

func TestManagerMeteringHistoryTruncated(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", 0)

	history := make([]float64, 1500)
	for i := range history {
		history[i] = float64(i)
	}
	if err := m.Save(context.Background(), SaveParams{ID: "rec-1", MeteringHistory: history}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	d, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(d.MeteringHistory) != 1000 {
		t.Fatalf("persisted %d samples, want 1000", len(d.MeteringHistory))
	}
	// The most recent samples survive, the oldest are dropped.
	if d.MeteringHistory[0] != 500 || d.MeteringHistory[999] != 1499 {
		t.Errorf("history window = [%f..%f], want [500..1499]",
			d.MeteringHistory[0], d.MeteringHistory[999])
	}
}

func TestManagerAutosaveSkipsUnchanged(t *testing.T) {
	store := newCountingStore()
	m := NewManager(store, "", 30*time.Millisecond)

	m.Start(staticSnapshot(SaveParams{ID: "rec-1", Duration: 5}))
	defer m.Stop()

	// Initial save happens immediately; the unchanged snapshot must not
	// produce further writes across several ticks.
	time.Sleep(150 * time.Millisecond)

	if got := store.setCount(); got != 1 {
		t.Errorf("unchanged session produced %d writes, want 1", got)
	}
}

func TestManagerAutosaveWritesOnChange(t *testing.T) {
	store := newCountingStore()
	m := NewManager(store, "", 30*time.Millisecond)

	var mu sync.Mutex
	duration := 5.0
	m.Start(func() SaveParams {
		mu.Lock()
		defer mu.Unlock()
		return SaveParams{ID: "rec-1", Duration: duration}
	})
	defer m.Stop()

	mu.Lock()
	duration = 6.0
	mu.Unlock()

	deadline := time.After(time.Second)
	for store.setCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("autosave never persisted the changed duration, %d writes", store.setCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerStopKeepsDraft(t *testing.T) {
	store := newCountingStore()
	m := NewManager(store, "", time.Hour)

	m.Start(staticSnapshot(SaveParams{ID: "rec-1", Duration: 5}))
	m.Stop()

	d, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load after stop: %v", err)
	}
	if d == nil {
		t.Fatal("stop must keep the persisted draft for recovery")
	}
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	store := NewMemoryStore()

	blob := []byte("original")
	if err := store.Set(context.Background(), "k", blob); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	blob[0] = 'X'

	got, err := store.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored blob aliased caller memory: %q", got)
	}
}
