// Package config loads service configuration from defaults, an optional
// YAML file and INTERP_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"drawing-interpreter/internal/common/logging"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix         = "INTERP_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      logging.Config `koanf:"log"`
	History  HistoryConfig  `koanf:"history"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Tuning   rules.Tuning   `koanf:"tuning"`
}

type ServerConfig struct {
	Port         string `koanf:"port"`
	Environment  string `koanf:"environment"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
	BodyLimit    int    `koanf:"body_limit"`    // bytes
	// InterpreterURL is where the gateway forwards /api/v1 requests.
	InterpreterURL string   `koanf:"interpreter_url"`
	AllowOrigins   []string `koanf:"allow_origins"`
}

const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
)

type HistoryConfig struct {
	Driver string `koanf:"driver"` // memory or sqlite
	DBPath string `koanf:"db_path"`
	// Capacity bounds the memory store; zero keeps everything.
	Capacity int `koanf:"capacity"`
	// ArchiveDir keeps full results as JSON when set.
	ArchiveDir string `koanf:"archive_dir"`
}

type PipelineConfig struct {
	Workers               int  `koanf:"workers"`
	ProcessUnmappedLayers bool `koanf:"process_unmapped_layers"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "3000",
			Environment:    "development",
			ReadTimeout:    10,
			WriteTimeout:   30,
			BodyLimit:      32 * 1024 * 1024,
			InterpreterURL: "http://localhost:3001",
			AllowOrigins:   []string{"*"},
		},
		Log: logging.DefaultConfig(),
		History: HistoryConfig{
			Driver:   HistoryMemory,
			DBPath:   "data/history.db",
			Capacity: 1000,
		},
		Tuning: rules.DefaultTuning(),
	}
}

// Load reads the YAML file at path when path is non-empty, then applies
// the environment. INTERP_SERVER_PORT sets server.port and
// INTERP_TUNING_ALIGNMENT_TOLERANCE sets tuning.alignment_tolerance.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps INTERP_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func (c Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	switch c.History.Driver {
	case HistoryMemory:
	case HistorySQLite:
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("history.driver must be %s or %s, got %q", HistoryMemory, HistorySQLite, c.History.Driver)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	if err := c.Tuning.Validate(); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	return nil
}
