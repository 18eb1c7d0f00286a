package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.ChunkDuration() != 256*time.Millisecond {
		t.Errorf("chunk duration = %v, want 256ms", cfg.ChunkDuration())
	}
	if cfg.Suppression.FFTSize != 2048 {
		t.Errorf("fft size = %d, want 2048", cfg.Suppression.FFTSize)
	}
	if cfg.Draft.Store != "sqlite" {
		t.Errorf("draft store = %q, want sqlite", cfg.Draft.Store)
	}
	if cfg.DraftInterval() != 10*time.Second {
		t.Errorf("draft interval = %v, want 10s", cfg.DraftInterval())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
audio:
  sample_rate: 44100
  chunk_ms: 128
translation:
  enabled: true
  endpoint: http://localhost:9000/translate
  target_language: fr
draft:
  store: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want override 44100", cfg.Audio.SampleRate)
	}
	if cfg.ChunkDuration() != 128*time.Millisecond {
		t.Errorf("chunk duration = %v, want 128ms", cfg.ChunkDuration())
	}
	if !cfg.Translation.Enabled || cfg.Translation.TargetLanguage != "fr" {
		t.Errorf("translation = %+v", cfg.Translation)
	}
	if cfg.Draft.Store != "memory" {
		t.Errorf("draft store = %q, want memory", cfg.Draft.Store)
	}

	// Unset fields keep their defaults.
	if cfg.Suppression.FFTSize != 2048 {
		t.Errorf("fft size = %d, want default 2048", cfg.Suppression.FFTSize)
	}
	if cfg.Translation.DebounceMs != 500 {
		t.Errorf("debounce = %d, want default 500", cfg.Translation.DebounceMs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("want error for missing config file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "audio: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("want error for malformed yaml")
	}
}
