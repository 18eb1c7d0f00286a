package audio

import (
	"math"
	"testing"
)

func sineFrame(freq float64, amplitude float64, sampleRate, samples int) Frame {
	pcm := make([]int16, samples)
	for i := range pcm {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		pcm[i] = int16(v * 32767)
	}
	return NewFrame(pcm, sampleRate)
}

func TestMeterSilenceClampsToFloor(t *testing.T) {
	var meter Meter

	frame := NewFrame(make([]int16, 4096), 16000)
	db := meter.Sample(frame)

	if db != SilenceFloorDB {
		t.Errorf("silence should meter at the clamp floor, got %f", db)
	}
	if math.IsNaN(db) || math.IsInf(db, 0) {
		t.Errorf("silence metering must stay finite, got %f", db)
	}
}

func TestMeterEmptyFrame(t *testing.T) {
	var meter Meter
	if db := meter.Sample(NewFrame(nil, 16000)); db != SilenceFloorDB {
		t.Errorf("empty frame should meter at the clamp floor, got %f", db)
	}
}

func TestMeterSineTone(t *testing.T) {
	var meter Meter

	// 256ms of a 440Hz tone peaking at -10dBFS. RMS sits ~3dB below
	// the peak, so the reading must land in (-15, -5).
	amplitude := math.Pow(10, -10.0/20)
	frame := sineFrame(440, amplitude, 16000, 4096)

	db := meter.Sample(frame)
	if db <= -15 || db >= -5 {
		t.Errorf("-10dBFS tone metered at %f, want within (-15, -5)", db)
	}
}

func TestMeterFullScaleClampsToZero(t *testing.T) {
	var meter Meter

	pcm := make([]int16, 1024)
	for i := range pcm {
		pcm[i] = 32767
	}
	db := meter.Sample(NewFrame(pcm, 16000))
	if db > 0 {
		t.Errorf("full-scale frame must clamp to 0dB, got %f", db)
	}
}

func TestBarIntensity(t *testing.T) {
	tests := []struct {
		name string
		db   float64
		want float64
	}{
		{"floor", -60, 0},
		{"inactive sentinel", InactiveDB, 0},
		{"range bottom", -30, 0},
		{"full", 0, 1},
		{"midpoint", -15, math.Pow(0.5, 1.3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BarIntensity(tt.db)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("BarIntensity(%f) = %f, want %f", tt.db, got, tt.want)
			}
			// Presentation values must be reproducible bit-for-bit.
			if again := BarIntensity(tt.db); again != got {
				t.Errorf("BarIntensity(%f) not deterministic: %f vs %f", tt.db, got, again)
			}
		})
	}
}

func TestHistoryBoundedRetention(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Push(float64(i))
	}

	got := h.Samples()
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("history length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestHistoryRestoreTruncates(t *testing.T) {
	h := NewHistory(2)
	h.Restore([]float64{1, 2, 3, 4})

	got := h.Samples()
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("restore should keep the most recent entries, got %v", got)
	}
}
