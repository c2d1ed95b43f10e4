// Package config loads the server configuration. Values come from built-in
// defaults, an optional TOML file and finally the environment (including a
// .env file in the working directory), in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Game     GameConfig     `toml:"game"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port string `toml:"port"`
	// WebURL is where the browser app lives; OAuth callbacks redirect there.
	WebURL string `toml:"web_url"`
	// SigningKey signs session cookies.
	SigningKey      string `toml:"signing_key"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`
}

// SpotifyConfig contains the Spotify application credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// GameConfig contains lobby and game behaviour.
type GameConfig struct {
	AllowHostParticipant bool `toml:"allow_host_participant"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// SpotifyCalls traces every Web API call at debug level.
	SpotifyCalls bool `toml:"spotify_calls"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "4000",
			WebURL:          "http://localhost:5173",
			ShutdownTimeout: 10,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:4000/auth/callback",
		},
		Database: DatabaseConfig{Path: "trivia.db"},
		Game:     GameConfig{AllowHostParticipant: true},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path may be empty; a missing file at a
// non-empty path is an error. A .env file is loaded when present.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides to cfg.
func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &cfg.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &cfg.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URL":  &cfg.Spotify.RedirectURL,
		"SIGNING_KEY":           &cfg.Server.SigningKey,
		"DATABASE_PATH":         &cfg.Database.Path,
		"PORT":                  &cfg.Server.Port,
		"WEB_URL":               &cfg.Server.WebURL,
		"LOG_LEVEL":             &cfg.Logging.Level,
		"LOG_FORMAT":            &cfg.Logging.Format,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	flags := map[string]*bool{
		"ALLOW_HOST_AS_PARTICIPANT": &cfg.Game.AllowHostParticipant,
		"LOG_SPOTIFY_API_CALLS":     &cfg.Logging.SpotifyCalls,
	}
	for key, dst := range flags {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks that the configuration can run the server.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.Server.SigningKey == "" {
		missing = append(missing, "SIGNING_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
