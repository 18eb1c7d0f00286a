// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livecap/livecap/internal/logging"
)

// Config is the full pipeline configuration.
type Config struct {
	Audio struct {
		SampleRate      int    `yaml:"sample_rate"`
		ChunkMs         int    `yaml:"chunk_ms"`
		Backend         string `yaml:"backend"` // portaudio
		DeviceIndex     int    `yaml:"device_index"`
		FramesPerBuffer int    `yaml:"frames_per_buffer"`
	} `yaml:"audio"`

	Suppression struct {
		NoiseGateThreshold float64 `yaml:"noise_gate_threshold"`
		SubtractionAmount  float64 `yaml:"subtraction_amount"`
		EnableNoiseFloor   bool    `yaml:"enable_noise_floor"`
		FFTSize            int     `yaml:"fft_size"`
		ProfileOnStart     bool    `yaml:"profile_on_start"`
		ProfileFrames      int     `yaml:"profile_frames"`
	} `yaml:"suppression"`

	Transcript struct {
		StreamURL            string  `yaml:"stream_url"`
		SpeakerContinuityGap float64 `yaml:"speaker_continuity_gap"`
		ReorderWindowSec     float64 `yaml:"reorder_window_sec"`
	} `yaml:"transcript"`

	Translation struct {
		Enabled        bool   `yaml:"enabled"`
		Endpoint       string `yaml:"endpoint"`
		TargetLanguage string `yaml:"target_language"`
		DebounceMs     int    `yaml:"debounce_ms"`
		BatchDelayMs   int    `yaml:"batch_delay_ms"`
	} `yaml:"translation"`

	Transport struct {
		Addr string `yaml:"addr"`
	} `yaml:"transport"`

	Draft struct {
		Store       string `yaml:"store"` // redis, sqlite, memory
		Key         string `yaml:"key"`
		IntervalSec int    `yaml:"interval_sec"`
		Redis       struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"draft"`

	Logging logging.Config `yaml:"logging"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when fields are unset.
func Default() *Config {
	cfg := &Config{}
	cfg.Audio.SampleRate = 16000
	cfg.Audio.ChunkMs = 256
	cfg.Audio.Backend = "portaudio"
	cfg.Audio.FramesPerBuffer = 1024

	cfg.Suppression.NoiseGateThreshold = -40
	cfg.Suppression.SubtractionAmount = 2.0
	cfg.Suppression.EnableNoiseFloor = true
	cfg.Suppression.FFTSize = 2048
	cfg.Suppression.ProfileFrames = 10

	cfg.Transcript.SpeakerContinuityGap = 3.0
	cfg.Transcript.ReorderWindowSec = 2.0

	cfg.Translation.DebounceMs = 500
	cfg.Translation.BatchDelayMs = 300

	cfg.Draft.Store = "sqlite"
	cfg.Draft.SQLitePath = "livecap_drafts.sqlite"
	cfg.Draft.IntervalSec = 10

	cfg.Logging = logging.DefaultConfig()
	return cfg
}

// Load reads path and decodes it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// ChunkDuration returns the configured capture chunk duration.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Audio.ChunkMs) * time.Millisecond
}

// DraftInterval returns the configured autosave interval.
func (c *Config) DraftInterval() time.Duration {
	return time.Duration(c.Draft.IntervalSec) * time.Second
}
