// Package config loads the settings of the tosgps tools.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/de-bkg/tosmeta/pkg/rinex"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultURL       = "https://vi-api.vedur.is/tos/v1"
	defaultTimeout   = 10 * time.Second
	defaultOutputDir = "./rinex_fixed"

	// DefaultFile is read if no config file is given.
	DefaultFile = "tosgps.yaml"
)

// envFile is loaded into the environment if it exists. Variables already set are kept.
var envFile = ".env"

var validate = validator.New()

// TOS holds the API settings.
type TOS struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Config holds the settings.
type Config struct {
	TOS       TOS           `yaml:"tos"`
	Archive   rinex.Archive `yaml:"archive"`
	OutputDir string        `yaml:"output_dir" validate:"required"`
}

// Default returns the default settings.
func Default() *Config {
	return &Config{
		TOS: TOS{URL: defaultURL, Timeout: defaultTimeout},
		Archive: rinex.Archive{
			Root:        "/mnt_data/rawgpsdata",
			Frequency:   "15s_24hr",
			RawDir:      "rinex",
			Compression: "Z",
		},
		OutputDir: defaultOutputDir,
	}
}

// Load returns the defaults overridden by the YAML file, the .env file and the environment.
// With an empty path DefaultFile is used if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	if err := cfg.fromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) readFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (cfg *Config) fromEnv() error {
	if v := strings.TrimSpace(os.Getenv("TOS_URL")); v != "" {
		cfg.TOS.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("TOS_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOS_TIMEOUT: %w", err)
		}
		cfg.TOS.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv("RINEX_ARCHIVE")); v != "" {
		cfg.Archive.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("RINEX_OUTPUT_DIR")); v != "" {
		cfg.OutputDir = v
	}
	return nil
}

// Validate checks the settings.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
