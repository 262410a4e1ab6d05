package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := run(logger); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

func run(logger *log.Logger) error {
	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}

	if err := shared.SetLogLevelString(logger, config.Log.Level); err != nil {
		logger.Warn("ignoring log level", "error", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	providers := buildProviders(config, logger)
	defer providers.Close()

	runner := NewRunner(RunnerOpts{
		Config:      config,
		Spotify:     providers.Spotify,
		MusicBrainz: providers.MusicBrainz,
		YouTube:     providers.YouTube,
		Logger:      logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "tonearm",
		Usage:    "Reconcile a local music library with Spotify, MusicBrainz & YouTube Music",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	return app.Run(context.Background(), os.Args)
}
