// Package config loads the planner server configuration from a YAML file,
// with overrides from a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// Environment variables that override the file.
const (
	EnvListen       = "PLANNER_LISTEN"
	EnvDatabaseDSN  = "PLANNER_DB_DSN"
	EnvLogLevel     = "PLANNER_LOG_LEVEL"
	EnvEnginePreset = "PLANNER_ENGINE_PRESET"
	EnvMaxRangeDays = "PLANNER_MAX_RANGE_DAYS"
)

// Engine presets
const (
	PresetDefault        = "default"
	PresetHighThroughput = "high_throughput"
	PresetLowMemory      = "low_memory"
	PresetDisabledCache  = "disabled_cache"
)

// EngineConfig picks a recurrence engine preset and optionally overrides
// its limits.
type EngineConfig struct {
	Preset string `yaml:"preset" json:"preset"`
	// MaxRangeDays and Workers override the preset when positive.
	MaxRangeDays int `yaml:"max_range_days,omitempty" json:"max_range_days,omitempty"`
	Workers      int `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// TemplateConfig is a template seeded into storage at startup.
type TemplateConfig struct {
	Ref    string              `yaml:"ref" json:"ref"`
	Owner  string              `yaml:"owner" json:"owner"`
	Name   string              `yaml:"name" json:"name"`
	Color  string              `yaml:"color,omitempty" json:"color,omitempty"`
	Blocks []storage.TimeBlock `yaml:"blocks" json:"blocks"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`
	// BaseURI is the path prefix the planner routes are mounted under.
	BaseURI string `yaml:"base_uri" json:"base_uri"`
	// DatabaseDSN selects the store: empty for in-memory, a postgres URL or
	// keyword DSN for PostgreSQL, anything else is an SQLite file.
	DatabaseDSN string `yaml:"database_dsn" json:"database_dsn"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel  string           `yaml:"log_level" json:"log_level"`
	Engine    EngineConfig     `yaml:"engine" json:"engine"`
	Templates []TemplateConfig `yaml:"templates" json:"templates"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "127.0.0.1:8080",
		BaseURI:   "/planner",
		LogLevel:  "info",
		Engine:    EngineConfig{Preset: PresetDefault},
		Templates: []TemplateConfig{},
	}
}

// Normalize fills in missing values so that partially filled files still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.BaseURI == "" {
		c.BaseURI = "/planner"
	}
	c.BaseURI = "/" + strings.Trim(c.BaseURI, "/")
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.Engine.Preset == "" {
		c.Engine.Preset = PresetDefault
	}
	if c.Templates == nil {
		c.Templates = []TemplateConfig{}
	}
}

// SlogLevel converts LogLevel for a slog handler.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// EngineConfig resolves the engine preset and applies the overrides.
func (c *Config) EngineConfig() (recurrence.EngineConfig, error) {
	var ec recurrence.EngineConfig
	switch c.Engine.Preset {
	case PresetDefault, "":
		ec = recurrence.DefaultEngineConfig
	case PresetHighThroughput:
		ec = recurrence.HighThroughputConfig
	case PresetLowMemory:
		ec = recurrence.LowMemoryConfig
	case PresetDisabledCache:
		ec = recurrence.DisabledCacheConfig
	default:
		return ec, fmt.Errorf("unknown engine preset %q", c.Engine.Preset)
	}
	if c.Engine.MaxRangeDays > 0 {
		ec.MaxRangeDays = c.Engine.MaxRangeDays
	}
	if c.Engine.Workers > 0 {
		ec.Workers = c.Engine.Workers
	}
	return ec, nil
}

// Template converts the seed entry to a storage template.
func (t TemplateConfig) Template() *storage.Template {
	return &storage.Template{
		Ref:      t.Ref,
		OwnerRef: t.Owner,
		Name:     t.Name,
		Color:    t.Color,
		Blocks:   t.Blocks,
	}
}

// Load loads configuration from the given YAML path. A missing file is
// created with the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planner-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// ApplyEnv overrides cfg with PLANNER_* variables. Values come from the
// given .env files, missing files are skipped, and the process environment
// wins over them.
func (c *Config) ApplyEnv(envFiles ...string) error {
	vars := make(map[string]string)
	for _, f := range envFiles {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	for _, key := range []string{EnvListen, EnvDatabaseDSN, EnvLogLevel, EnvEnginePreset, EnvMaxRangeDays} {
		if v, ok := os.LookupEnv(key); ok {
			vars[key] = v
		}
	}

	if v, ok := vars[EnvListen]; ok && v != "" {
		c.Listen = v
	}
	if v, ok := vars[EnvDatabaseDSN]; ok {
		c.DatabaseDSN = v
	}
	if v, ok := vars[EnvLogLevel]; ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := vars[EnvEnginePreset]; ok && v != "" {
		c.Engine.Preset = v
	}
	if v, ok := vars[EnvMaxRangeDays]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", EnvMaxRangeDays, v)
		}
		c.Engine.MaxRangeDays = n
	}
	c.Normalize()
	return nil
}
