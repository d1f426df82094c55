// Package config loads the CLI configuration: defaults, then an optional
// redo.yaml, then REDO_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "redo.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REDO_"

// Supported storage backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Redis configures the redis backend.
type Redis struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Prefix   string        `yaml:"prefix" mapstructure:"prefix"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Config is the resolved CLI configuration.
type Config struct {
	// Dir is the base directory of the file backend and of relative workflow paths.
	Dir         string        `yaml:"dir" mapstructure:"dir"`
	Backend     string        `yaml:"backend" mapstructure:"backend"`
	Redis       Redis         `yaml:"redis" mapstructure:"redis"`
	LogLevel    string        `yaml:"log_level" mapstructure:"log_level"`
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
	LockTTL     time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
	MetricsFile string        `yaml:"metrics_file" mapstructure:"metrics_file"`
	Listen      string        `yaml:"listen" mapstructure:"listen"`

	// EncryptionKey is a base64 AES-256 key. When set, logs are stored encrypted.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dir:         ".",
		Backend:     BackendFile,
		Redis:       Redis{Addr: "localhost:6379", Prefix: "redo:log:"},
		LogLevel:    "warn",
		LockTimeout: time.Minute,
		LockTTL:     30 * time.Second,
		Listen:      ":8080",
	}
}

// envKeys maps environment variables to configuration keys.
var envKeys = map[string][]string{
	"DIR":            {"dir"},
	"BACKEND":        {"backend"},
	"LOG_LEVEL":      {"log_level"},
	"LOCK_TIMEOUT":   {"lock_timeout"},
	"LOCK_TTL":       {"lock_ttl"},
	"METRICS_FILE":   {"metrics_file"},
	"LISTEN":         {"listen"},
	"ENCRYPTION_KEY": {"encryption_key"},
	"REDIS_ADDR":     {"redis", "addr"},
	"REDIS_PASSWORD": {"redis", "password"},
	"REDIS_DB":       {"redis", "db"},
	"REDIS_PREFIX":   {"redis", "prefix"},
	"REDIS_TTL":      {"redis", "ttl"},
}

// Load resolves the configuration. An empty path looks for FileName in the
// working directory and tolerates its absence; an explicit path must exist.
// environ is usually os.Environ().
func Load(path string, environ []string) (Config, error) {
	raw := map[string]any{}

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		if dir, ok := raw["dir"].(string); ok && !filepath.IsAbs(dir) {
			raw["dir"] = filepath.Join(filepath.Dir(path), dir)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	overlayEnv(raw, environ)

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path, known := envKeys[strings.TrimPrefix(key, EnvPrefix)]
		if !known {
			continue
		}
		m := raw
		for _, p := range path[:len(path)-1] {
			sub, ok := m[p].(map[string]any)
			if !ok {
				sub = map[string]any{}
				m[p] = sub
			}
			m = sub
		}
		m[path[len(path)-1]] = value
	}
}

func decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown backend %q", domain.ErrConfiguration, c.Backend)
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis backend requires an address", domain.ErrConfiguration)
	}
	if c.LockTimeout < 0 || c.LockTTL < 0 || c.Redis.TTL < 0 {
		return fmt.Errorf("%w: durations must not be negative", domain.ErrConfiguration)
	}
	return nil
}
