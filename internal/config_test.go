package internal

import (
	"math"
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	s := cfg.Matching.Settings()
	if s.MatchThreshold != 200 || s.DefaultRadius != 200 {
		t.Errorf("settings = %+v, want 200/200", s)
	}
	if cfg.Seed.Enabled() {
		t.Error("seed should be disabled by default")
	}
}

func TestMatchingConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  MatchingConfig
	}{
		{"negative threshold", MatchingConfig{ThresholdMeters: -1, DefaultRadiusMeters: 200}},
		{"negative radius", MatchingConfig{ThresholdMeters: 200, DefaultRadiusMeters: -0.5}},
		{"nan threshold", MatchingConfig{ThresholdMeters: math.NaN(), DefaultRadiusMeters: 200}},
		{"infinite radius", MatchingConfig{ThresholdMeters: 200, DefaultRadiusMeters: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	zero := MatchingConfig{}
	if err := zero.Validate(); err != nil {
		t.Errorf("zero distances should be valid: %v", err)
	}
}

func TestSeedConfig_WatchRequiresPath(t *testing.T) {
	cfg := SeedConfig{Watch: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("watch without path should fail")
	}
	cfg.Path = "config/known_places.yaml"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("watch with path should pass: %v", err)
	}
}

func TestFullConfig_SectionValidationCalled(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"auth", func(c *Config) { c.Auth.Mode = "token"; c.Auth.Token = "" }},
		{"photos", func(c *Config) { c.Photos.Path = "" }},
		{"sqlite", func(c *Config) { c.SQLite.Path = "" }},
		{"port", func(c *Config) { c.App.HTTP.Port = 70000 }},
		{"matching", func(c *Config) { c.Matching.ThresholdMeters = -1 }},
		{"seed", func(c *Config) { c.Seed.Watch = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("full config validate should catch the error")
			}
		})
	}
}
