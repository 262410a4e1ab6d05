package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tonearm/internal/models"
	"github.com/desertthunder/tonearm/internal/radio"
	"github.com/desertthunder/tonearm/internal/ratelimit"
	"github.com/desertthunder/tonearm/internal/services"
	"github.com/desertthunder/tonearm/internal/shared"
)

// Providers holds the configured provider clients. Spotify is nil without credentials.
type Providers struct {
	Spotify     radio.Source
	MusicBrainz services.Provider
	YouTube     radio.Source
}

// buildProviders creates one client per provider, each with its own throttle and cache retention.
func buildProviders(config *shared.Config, logger *log.Logger) Providers {
	var p Providers
	limits := config.Providers

	spotify, err := services.NewSpotifyService(services.SpotifyOpts{
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		Throttle:     ratelimit.NewWindow(limits.Spotify.MaxRequests, limits.Spotify.Window()),
		Retention:    retentionSeconds(config, limits.Spotify.RetentionSeconds),
		Logger:       logger,
	})
	if err != nil {
		logger.Debug("spotify disabled", "error", err)
	} else {
		p.Spotify = spotify
	}

	p.MusicBrainz = services.NewMusicBrainzService(services.MusicBrainzOpts{
		BaseURL:   config.Credentials.MusicBrainz.BaseURL,
		UserAgent: config.Credentials.MusicBrainz.UserAgent,
		Throttle:  ratelimit.NewMinInterval(limits.MusicBrainz.MinInterval()),
		Retention: retentionSeconds(config, limits.MusicBrainz.RetentionSeconds),
		Logger:    logger,
	})

	p.YouTube = services.NewYouTubeService(services.YouTubeOpts{
		BaseURL:   config.Credentials.YouTube.ProxyURL,
		AuthFile:  config.Credentials.YouTube.HeadersPath,
		Throttle:  ratelimit.NewTokenBucket(limits.YouTube.RequestsPerSecond, limits.YouTube.Burst),
		Retention: retentionSeconds(config, limits.YouTube.RetentionSeconds),
		Logger:    logger,
	})

	return p
}

func retentionSeconds(config *shared.Config, override int) int {
	return int(config.ProviderRetention(override).Seconds())
}

// Lookup returns the provider with the given name.
func (p Providers) Lookup(name string) (services.Provider, error) {
	switch models.Provider(strings.ToLower(name)) {
	case models.ProviderSpotify:
		if p.Spotify == nil {
			return nil, fmt.Errorf("%w: spotify client_id and client_secret are not configured", shared.ErrMissingCredentials)
		}
		return p.Spotify, nil
	case models.ProviderMusicBrainz:
		if p.MusicBrainz == nil {
			return nil, fmt.Errorf("%w: musicbrainz", shared.ErrServiceUnavailable)
		}
		return p.MusicBrainz, nil
	case models.ProviderYouTube:
		if p.YouTube == nil {
			return nil, fmt.Errorf("%w: youtube", shared.ErrServiceUnavailable)
		}
		return p.YouTube, nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", shared.ErrInvalidArgument, name)
}

// RadioSource prefers Spotify recommendations and falls back to YouTube Music.
func (p Providers) RadioSource() radio.Source {
	if p.Spotify != nil {
		return p.Spotify
	}
	return p.YouTube
}

// Close releases every provider's cache and rate limiter.
func (p Providers) Close() error {
	var errs []error
	for _, svc := range []any{p.Spotify, p.MusicBrainz, p.YouTube} {
		if c, ok := svc.(services.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
