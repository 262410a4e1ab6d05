package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
	Cache       CacheConfig       `toml:"cache"`
	Providers   ProvidersConfig   `toml:"providers"`
	Matching    MatchingConfig    `toml:"matching"`
	Radio       RadioConfig       `toml:"radio"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	YouTube     YouTubeConfig     `toml:"youtube"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// YouTubeConfig contains YouTube Music proxy settings.
type YouTubeConfig struct {
	ProxyURL    string `toml:"proxy_url"`
	HeadersPath string `toml:"headers_path"`
}

// MusicBrainzConfig contains MusicBrainz client identification.
type MusicBrainzConfig struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// CacheConfig controls the keyed response caches owned by each provider.
type CacheConfig struct {
	RetentionSeconds int `toml:"retention_seconds"`
}

// ProvidersConfig holds one throttle policy per external provider.
type ProvidersConfig struct {
	Spotify     SpotifyThrottleConfig     `toml:"spotify"`
	MusicBrainz MusicBrainzThrottleConfig `toml:"musicbrainz"`
	YouTube     YouTubeThrottleConfig     `toml:"youtube"`
}

// SpotifyThrottleConfig allows MaxRequests per rolling window.
type SpotifyThrottleConfig struct {
	MaxRequests      int `toml:"max_requests"`
	WindowSeconds    int `toml:"window_seconds"`
	RetentionSeconds int `toml:"retention_seconds"`
}

// MusicBrainzThrottleConfig enforces a minimum gap between requests.
type MusicBrainzThrottleConfig struct {
	MinIntervalMS    int `toml:"min_interval_ms"`
	RetentionSeconds int `toml:"retention_seconds"`
}

// YouTubeThrottleConfig is a token bucket.
type YouTubeThrottleConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	RetentionSeconds  int     `toml:"retention_seconds"`
}

// MatchingConfig contains acceptance thresholds for the distance matcher.
type MatchingConfig struct {
	MaxAlbumDistance float64 `toml:"max_album_distance"`
	MaxTrackDistance float64 `toml:"max_track_distance"`
}

// RadioConfig contains the radio low-water marks and seeding sample size.
type RadioConfig struct {
	LowWaterTotal     int `toml:"low_water_total"`
	LowWaterRemaining int `toml:"low_water_remaining"`
	SeedSampleSize    int `toml:"seed_sample_size"`
}

// Retention returns the generic cache retention window.
func (c CacheConfig) Retention() time.Duration {
	return seconds(c.RetentionSeconds, 20)
}

// Window returns the Spotify rolling window.
func (c SpotifyThrottleConfig) Window() time.Duration {
	return seconds(c.WindowSeconds, 60)
}

// MinInterval returns the MusicBrainz gap between dispatches.
func (c MusicBrainzThrottleConfig) MinInterval() time.Duration {
	if c.MinIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// ProviderRetention returns the override when set, otherwise the generic retention.
func (c *Config) ProviderRetention(override int) time.Duration {
	if override > 0 {
		return time.Duration(override) * time.Second
	}
	return c.Cache.Retention()
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.Path == "" {
		problems = append(problems, "database.path cannot be empty")
	}
	if c.Cache.RetentionSeconds < 0 {
		problems = append(problems, fmt.Sprintf("cache.retention_seconds must not be negative, got %d", c.Cache.RetentionSeconds))
	}
	if c.Providers.Spotify.MaxRequests < 1 {
		problems = append(problems, fmt.Sprintf("providers.spotify.max_requests must be at least 1, got %d", c.Providers.Spotify.MaxRequests))
	}
	if c.Providers.YouTube.RequestsPerSecond <= 0 {
		problems = append(problems, fmt.Sprintf("providers.youtube.requests_per_second must be positive, got %v", c.Providers.YouTube.RequestsPerSecond))
	}
	if c.Matching.MaxAlbumDistance < 0 || c.Matching.MaxTrackDistance < 0 {
		problems = append(problems, "matching distances must not be negative")
	}
	if c.Radio.SeedSampleSize < 1 || c.Radio.SeedSampleSize > 5 {
		problems = append(problems, fmt.Sprintf("radio.seed_sample_size must be between 1 and 5, got %d", c.Radio.SeedSampleSize))
	}
	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "debug", "info", "warn", "error", "fatal":
		default:
			problems = append(problems, fmt.Sprintf("log.level must be one of: debug, info, warn, error, fatal, got: %s", c.Log.Level))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}
