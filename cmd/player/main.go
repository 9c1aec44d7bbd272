// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/app/audio"
	"github.com/cadenza-player/cadenza/internal/app/engine"
	"github.com/cadenza-player/cadenza/internal/app/eventbus"
	"github.com/cadenza-player/cadenza/internal/infra/beepdev"
	"github.com/cadenza-player/cadenza/internal/infra/config"
	"github.com/cadenza-player/cadenza/internal/infra/logger"
	"github.com/cadenza-player/cadenza/internal/infra/resolver"
	"github.com/cadenza-player/cadenza/internal/infra/tone"
	"github.com/cadenza-player/cadenza/internal/server"
)

var (
	app        = kingpin.New("cadenza", "cadenza playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	chain, err := resolver.NewChainFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build resolver chain: %w", err)
	}

	dev := beepdev.New()
	defer dev.Close()

	bus := eventbus.New()
	eng := engine.New(dev, bus, engine.Config{
		LoadTimeout:   time.Duration(cfg.Playback.LoadTimeoutMs) * time.Millisecond,
		InitialVolume: cfg.Playback.InitialVolume,
	})

	svc := audio.New(eng, bus, chain, tone.NewGenerator(""), audio.Config{
		FadeEnabled:          cfg.Playback.FadeOn(),
		FadeDuration:         time.Duration(cfg.Playback.FadeDurationMs) * time.Millisecond,
		ResolveRetries:       cfg.Playback.ResolveRetries,
		ResolveRetryDelay:    time.Duration(cfg.Playback.ResolveRetryDelayMs) * time.Millisecond,
		PreviousRestartAfter: time.Duration(cfg.Playback.PreviousRestartSec) * time.Second,
		ToneFrequency:        cfg.Tone.FrequencyHz,
		ToneWaveform:         cfg.Tone.Waveform,
	})
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server.Addr, svc)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	zlog.Info().Msg("Player stopped")
	return nil
}
