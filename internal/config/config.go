// Package config holds the settings of the harvest command that are not part
// of its positional arguments.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/taurusgroup/dilithium-sca/pkg/harvest"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "HARVEST_CONFIG"

// Config is the content of the yaml config file.
type Config struct {
	Mode          int    `yaml:"mode"`
	ProgressEvery uint64 `yaml:"progress_every"`
	ReserveLimit  int    `yaml:"reserve_limit"` // records
	// Seed is hex encoded. When empty, workers read from crypto/rand.
	Seed string `yaml:"seed"`
	// KeyFile is loaded when it exists, and written with a fresh key otherwise.
	KeyFile    string        `yaml:"key_file"`
	ReportPath string        `yaml:"report_path"`
	Log        LoggingConfig `yaml:"log"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Mode:          int(params.Mode2),
		ProgressEvery: harvest.DefaultProgressEvery,
		ReserveLimit:  harvest.DefaultReserveLimit,
		Log: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the yaml file at path on top of the defaults, then applies the
// environment overrides. A missing file, or an empty path, yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the file named by the HARVEST_CONFIG variable.
func FromEnv() (*Config, error) {
	return Load(os.Getenv(PathEnv))
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("HARVEST_MODE"); v != "" {
		mode, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HARVEST_MODE: %w", err)
		}
		c.Mode = mode
	}
	if v := os.Getenv("HARVEST_SEED"); v != "" {
		c.Seed = v
	}
	if v := os.Getenv("HARVEST_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks the values that cannot be fixed by a default.
func (c *Config) Validate() error {
	if _, err := params.ForMode(params.Mode(c.Mode)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.ProgressEvery == 0 {
		return fmt.Errorf("config: progress_every must be positive")
	}
	if _, err := c.SeedBytes(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	return nil
}

// Params returns the parameter set of the configured mode.
func (c *Config) Params() (params.Params, error) {
	return params.ForMode(params.Mode(c.Mode))
}

// SeedBytes decodes Seed.
func (c *Config) SeedBytes() ([]byte, error) {
	seed, err := hex.DecodeString(c.Seed)
	if err != nil {
		return nil, fmt.Errorf("config: seed: %w", err)
	}
	return seed, nil
}

// Logger builds the zap logger described by the logging section.
func (c *LoggingConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
