// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort            = "8080"
	defaultDBPath          = "./data/commission.db"
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 30 * time.Second
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 60 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Engine   EngineConfig
	LogLevel string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	// DBPath is the SQLite file; ":memory:" keeps everything in RAM.
	DBPath    string
	// PlansFile optionally seeds plans (YAML or JSON) at startup.
	PlansFile string
}

// EngineConfig tunes recalculation.
type EngineConfig struct {
	// Workers bounds concurrent agent batches; 0 means GOMAXPROCS.
	Workers int
}

// ValidationError lists configuration fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, so tests can supply a map.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "COMMISSION_PORT", defaultPort),
			CORSOrigins:     csvWithDefault(lookup, "COMMISSION_CORS_ORIGINS", []string{"*"}),
			ReadTimeout:     durationWithDefault(lookup, "COMMISSION_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "COMMISSION_WRITE_TIMEOUT", defaultWriteTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "COMMISSION_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Storage: StorageConfig{
			DBPath:    stringWithDefault(lookup, "COMMISSION_DB", defaultDBPath),
			PlansFile: stringWithDefault(lookup, "COMMISSION_PLANS_FILE", ""),
		},
		Engine: EngineConfig{
			Workers: intWithDefault(lookup, "COMMISSION_WORKERS", 0),
		},
		LogLevel: stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
	}
	return cfg, Validate(cfg)
}

// Validate checks field ranges. cmd/server calls it again after applying
// command-line overrides.
func Validate(cfg Config) error {
	var bad []string
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port <= 0 || port > 65535 {
		bad = append(bad, "Server.Port")
	}
	if cfg.Storage.DBPath == "" {
		bad = append(bad, "Storage.DBPath")
	}
	if cfg.Engine.Workers < 0 {
		bad = append(bad, "Engine.Workers")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		bad = append(bad, "Server.ShutdownTimeout")
	}
	if len(bad) > 0 {
		return &ValidationError{fields: bad}
	}
	return nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string, fallback []string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
