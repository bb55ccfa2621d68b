// Package config loads application configuration from a YAML file and
// ADVISOR_-prefixed environment variables, with env taking precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"specadvisor/pkg/contracts/domain"
)

// Config is the complete application configuration.
type Config struct {
	Server      Server                    `yaml:"server" envconfig:"SERVER"`
	Logging     Logging                   `yaml:"logging" envconfig:"LOGGING"`
	Storage     Storage                   `yaml:"storage" envconfig:"STORAGE"`
	Scoring     domain.ScoringOptions     `yaml:"scoring" envconfig:"SCORING"`
	Specialties []domain.SpecialtyProfile `yaml:"specialties"`
}

// Server contains HTTP server settings.
type Server struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

// Logging contains structured logging settings.
type Logging struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// Storage contains persistence settings.
type Storage struct {
	Path string `yaml:"path" envconfig:"PATH" validate:"required"`
}

// Default returns the built-in configuration, including the default
// specialty profile table.
func Default() Config {
	return Config{
		Server: Server{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Logging: Logging{Level: "info", Format: "json"},
		Storage: Storage{Path: "data/advisor.db"},
		Scoring: domain.DefaultScoringOptions(),
		Specialties: []domain.SpecialtyProfile{
			{
				Name:        "SIL",
				Description: "Systèmes d'Information et Logiciels",
				Weights: map[string]float64{
					"IGL": 0.25, "CPROJ": 0.15, "PROJ": 0.15, "THP": 0.15, "BDD": 0.15, "ARCH": 0.15,
				},
			},
			{
				Name:        "SID",
				Description: "Systèmes d'Information et Données",
				Weights: map[string]float64{
					"BDD": 0.30, "ANUM": 0.20, "RO": 0.20, "MCSI": 0.15, "THP": 0.15,
				},
			},
			{
				Name:        "SIQ",
				Description: "Systèmes d'Information et de Qualité",
				Weights: map[string]float64{
					"MCSI": 0.30, "ORG": 0.25, "RO": 0.20, "IGL": 0.15, "ANUM": 0.10,
				},
			},
			{
				Name:        "SIT",
				Description: "Systèmes d'Information et Technologies",
				Weights: map[string]float64{
					"SYS1": 0.15, "SYS2": 0.15, "RES1": 0.15, "RES2": 0.15, "ARCH": 0.20, "SEC": 0.20,
				},
			},
		},
	}
}

// Load builds the configuration: defaults, overlaid by the YAML file at path
// (when it exists), overlaid by environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("ADVISOR", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural validity, option bounds and profile weights.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if !c.Scoring.IsValid() {
		return fmt.Errorf("invalid scoring options: %+v", c.Scoring)
	}
	if len(c.Specialties) == 0 {
		return fmt.Errorf("at least one specialty profile is required")
	}
	for _, p := range c.Specialties {
		if !p.IsValid() {
			return fmt.Errorf("specialty %q: weights must be positive and sum to 1", p.Name)
		}
	}
	return nil
}

// NewLogger builds the application slog logger from the logging settings.
func (l Logging) NewLogger() *slog.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
