// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/rulegate/internal/catalog"
	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/session"
)

// DefaultExportFile is where play writes the exported story.
const DefaultExportFile = "future_education_story.txt"

// Config holds every setting the CLI can take from the environment.
// Flags override these values.
type Config struct {
	Catalog       string        `env:"RULEGATE_CATALOG" envDefault:"future-education"`
	RulesDir      string        `env:"RULEGATE_RULES_DIR"` // overrides Catalog when set
	StruggleAfter time.Duration `env:"RULEGATE_STRUGGLE_AFTER" envDefault:"20s"`
	HelpInterval  time.Duration `env:"RULEGATE_HELP_INTERVAL" envDefault:"5s"`
	ExportFile    string        `env:"RULEGATE_EXPORT_FILE" envDefault:"future_education_story.txt"`
	RawExport     bool          `env:"RULEGATE_RAW_EXPORT"`
	Journal       string        `env:"RULEGATE_JOURNAL"` // SQLite path; empty disables journaling
	LogLevel      string        `env:"RULEGATE_LOG_LEVEL" envDefault:"info"`
	Sticky        bool          `env:"RULEGATE_STICKY"`
}

// Default returns the configuration used when the environment is empty.
func Default() Config {
	return Config{
		Catalog:       catalog.Default,
		StruggleAfter: engine.DefaultStruggleAfter,
		HelpInterval:  session.DefaultHelpInterval,
		ExportFile:    DefaultExportFile,
		LogLevel:      "info",
	}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given dotenv files (".env" when none are named), then
// parses the environment. Missing dotenv files are skipped. Variables
// already set in the environment win over dotenv values.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, file := range dotenv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine or session would refuse.
func (c Config) Validate() error {
	if c.StruggleAfter <= 0 {
		return fmt.Errorf("RULEGATE_STRUGGLE_AFTER must be positive, got %s", c.StruggleAfter)
	}
	if c.HelpInterval < 0 {
		return fmt.Errorf("RULEGATE_HELP_INTERVAL must not be negative, got %s", c.HelpInterval)
	}
	if c.RulesDir == "" && c.Catalog == "" {
		return fmt.Errorf("one of RULEGATE_CATALOG or RULEGATE_RULES_DIR is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("RULEGATE_LOG_LEVEL: %w", err)
	}
	return level, nil
}
