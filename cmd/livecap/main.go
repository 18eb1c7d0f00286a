package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livecap/livecap/internal/audio"
	"github.com/livecap/livecap/internal/config"
	"github.com/livecap/livecap/internal/draft"
	"github.com/livecap/livecap/internal/logging"
	"github.com/livecap/livecap/internal/metrics"
	"github.com/livecap/livecap/internal/session"
	"github.com/livecap/livecap/internal/transcript"
	"github.com/livecap/livecap/internal/translate"
	"github.com/livecap/livecap/internal/transport"
)

func main() {
	var configFile string
	var resume bool
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.BoolVar(&resume, "resume", false, "Resume from a recovered draft if one exists")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Logging)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("draft store unavailable")
	}
	defer closeStore()

	deps := session.Deps{
		Backend: audio.NewPortAudioBackend(
			cfg.Audio.SampleRate,
			cfg.Audio.FramesPerBuffer,
			cfg.Audio.DeviceIndex,
		),
		Store: store,
	}

	if cfg.Translation.Endpoint != "" {
		deps.Translator = translate.NewHTTPClient(cfg.Translation.Endpoint, 0)
	}

	var stream *transcript.Stream
	if cfg.Transcript.StreamURL != "" {
		stream, err = transcript.DialStream(cfg.Transcript.StreamURL, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("transcript stream unavailable")
		}
		deps.Events = stream.Events()
	}

	sess := session.New(sessionOptions(cfg), deps)

	if cfg.Transport.Addr != "" {
		conn, err := transport.Dial(cfg.Transport.Addr)
		if err != nil {
			log.Fatal().Err(err).Msg("recognition transport unavailable")
		}
		sender, err := transport.NewSender(conn, sess.ID)
		if err != nil {
			log.Fatal().Err(err).Msg("recognition transport handshake failed")
		}
		sess.AttachSender(sender)
	}

	if resume {
		d, err := sess.Drafts().Load(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("draft recovery failed")
		} else if d != nil {
			sess.Resume(d)
		}
	}

	if err := sess.Start(); err != nil {
		log.Fatal().Err(err).Msg("recording failed to start")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess.Stop(ctx, true)
	if stream != nil {
		stream.Close()
	}
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		SampleRate:    cfg.Audio.SampleRate,
		ChunkDuration: cfg.ChunkDuration(),

		FFTSize: cfg.Suppression.FFTSize,
		Suppressor: audio.SuppressorOptions{
			NoiseGateThreshold:        cfg.Suppression.NoiseGateThreshold,
			SpectralSubtractionAmount: cfg.Suppression.SubtractionAmount,
			EnableNoiseFloor:          cfg.Suppression.EnableNoiseFloor,
		},
		ProfileOnStart: cfg.Suppression.ProfileOnStart,
		ProfileFrames:  cfg.Suppression.ProfileFrames,

		Fusion: transcript.Config{
			SpeakerContinuityGap: cfg.Transcript.SpeakerContinuityGap,
			ReorderWindow:        cfg.Transcript.ReorderWindowSec,
		},
		Translate: translate.Options{
			Enabled:        cfg.Translation.Enabled,
			TargetLanguage: cfg.Translation.TargetLanguage,
			Debounce:       time.Duration(cfg.Translation.DebounceMs) * time.Millisecond,
			BatchDelay:     time.Duration(cfg.Translation.BatchDelayMs) * time.Millisecond,
		},

		DraftKey:      cfg.Draft.Key,
		DraftInterval: cfg.DraftInterval(),
	}
}

func openStore(cfg *config.Config) (draft.Store, func(), error) {
	switch cfg.Draft.Store {
	case "redis":
		store := draft.NewRedisStore(cfg.Draft.Redis.Addr, cfg.Draft.Redis.Password, cfg.Draft.Redis.DB)
		if err := store.Ping(context.Background()); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "sqlite":
		store, err := draft.OpenSQLite(cfg.Draft.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "memory":
		return draft.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown draft store %q", cfg.Draft.Store)
	}
}
