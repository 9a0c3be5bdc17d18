package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

// Settings are tunables read from WTF_* environment variables.
type Settings struct {
	RefreshInterval time.Duration `env:"WTF_REFRESH_INTERVAL" envDefault:"100ms"`
	LogLevel        string        `env:"WTF_LOG_LEVEL" envDefault:"info"`
	MaxExecArgs     int           `env:"WTF_MAX_EXEC_ARGS" envDefault:"256"`
	MaxStringLen    int           `env:"WTF_MAX_STRING_LEN" envDefault:"4096"`
	Attributes      string        `env:"WTF_ATTRIBUTES" envDefault:""`
}

// DefaultSettings returns the settings used when the environment is empty.
func DefaultSettings() *Settings {
	return &Settings{
		RefreshInterval: 100 * time.Millisecond,
		LogLevel:        "info",
		MaxExecArgs:     256,
		MaxStringLen:    4096,
	}
}

// ParseSettings parses WTF_* settings from environment variables
func ParseSettings() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects values the tracer cannot run with.
func (s *Settings) Validate() error {
	if s.RefreshInterval <= 0 {
		return fmt.Errorf("WTF_REFRESH_INTERVAL must be positive, got %s", s.RefreshInterval)
	}
	if s.MaxExecArgs < 0 {
		return fmt.Errorf("WTF_MAX_EXEC_ARGS must not be negative, got %d", s.MaxExecArgs)
	}
	if s.MaxStringLen <= 0 {
		return fmt.Errorf("WTF_MAX_STRING_LEN must be positive, got %d", s.MaxStringLen)
	}
	if _, err := s.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (s *Settings) Level() (log.Level, error) {
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("WTF_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
