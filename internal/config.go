package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/flare/internal/flareservice"
	"github.com/starford/flare/internal/matcher"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Photos   PhotosConfig      `yaml:"photos"`
	Matching MatchingConfig    `yaml:"matching"`
	Seed     SeedConfig        `yaml:"seed"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Photos.Validate(); err != nil {
		return err
	}
	if err := c.Matching.Validate(); err != nil {
		return err
	}
	if err := c.Seed.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PhotosConfig holds the root directory for uploaded flare photos.
type PhotosConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the photos configuration.
func (c *PhotosConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// MatchingConfig holds the distances, in meters, used to associate flares
// with known places and to answer nearby queries.
type MatchingConfig struct {
	ThresholdMeters     float64 `yaml:"threshold_meters"`
	DefaultRadiusMeters float64 `yaml:"default_radius_meters"`
}

// Validate validates the matching configuration.
func (c *MatchingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ThresholdMeters, validation.By(finite), validation.Min(0.0)),
		validation.Field(&c.DefaultRadiusMeters, validation.By(finite), validation.Min(0.0)),
	)
}

// Settings converts the configuration to service settings.
func (c *MatchingConfig) Settings() flareservice.Settings {
	return flareservice.Settings{
		MatchThreshold: c.ThresholdMeters,
		DefaultRadius:  c.DefaultRadiusMeters,
	}
}

func finite(value any) error {
	v, _ := value.(float64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("must be a finite number")
	}
	return nil
}

// SeedConfig points at an optional YAML file of known places.
//
// When Path is empty no seed file is loaded. When Watch is true the file is
// re-synced whenever it changes on disk.
type SeedConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Watch, validation.Required.Error("is required when watch is enabled"))),
	)
}

// Enabled returns true when a seed file is configured.
func (c *SeedConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced on mutating routes:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./flare.db",
		},
		Photos: PhotosConfig{
			Path: "./storage",
		},
		Matching: MatchingConfig{
			ThresholdMeters:     matcher.DefaultThreshold,
			DefaultRadiusMeters: matcher.DefaultRadius,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
