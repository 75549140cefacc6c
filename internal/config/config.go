// Package config loads service settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides. Nested keys use a double
// underscore: BUDDY_SERVER__PORT sets server.port.
const EnvPrefix = "BUDDY_"

// DefaultFile is read when no file is given and it exists in the working directory.
const DefaultFile = "deprebuddy.yaml"

// legacyEnv maps the variable names of earlier deployments to config keys.
var legacyEnv = map[string]string{
	"GOOGLE_API_KEY": "agent.api_key",
	"MODEL_NAME":     "agent.model",
	"SECRET_KEY":     "store.secret_key",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Agent     AgentConfig     `koanf:"agent"`
	Store     StoreConfig     `koanf:"store"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	MaxMessageSize  int           `koanf:"max_message_size"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text, json
}

type AgentConfig struct {
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	BaseURL       string        `koanf:"base_url"`
	Offline       bool          `koanf:"offline"`
	Instructions  string        `koanf:"instructions"` // path to a YAML override file
	HistoryTokens int           `koanf:"history_tokens"`
	MaxAttempts   int           `koanf:"max_attempts"`
	BaseDelay     time.Duration `koanf:"base_delay"`
	MaxDelay      time.Duration `koanf:"max_delay"`
}

type StoreConfig struct {
	Type      string        `koanf:"type"` // memory, file, redis, sqlite
	TTL       time.Duration `koanf:"ttl"`
	SecretKey string        `koanf:"secret_key"`
	Redact    bool          `koanf:"redact"`
	Redis     RedisConfig   `koanf:"redis"`
	SQLite    SQLiteConfig  `koanf:"sqlite"`
	File      FileConfig    `koanf:"file"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
	Lock     bool   `koanf:"lock"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type FileConfig struct {
	Dir string `koanf:"dir"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
}

var defaults = map[string]any{
	"server.port":             8000,
	"server.max_message_size": 4096,
	"server.shutdown_timeout": "10s",
	"log.level":               "info",
	"log.format":              "text",
	"agent.model":             "gemini-2.5-flash",
	"agent.history_tokens":    2048,
	"agent.max_attempts":      5,
	"agent.base_delay":        "1s",
	"agent.max_delay":         "16s",
	"store.type":              "memory",
	"store.ttl":               "0s",
	"store.redis.addr":        "localhost:6379",
	"store.redis.prefix":      "deprebuddy:session:",
	"store.sqlite.path":       "deprebuddy.db",
	"store.file.dir":          ".deprebuddy/sessions",
}

// Load builds the configuration. An empty path reads DefaultFile when present;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	filePath := path
	if filePath == "" {
		filePath = DefaultFile
	}
	if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", filePath, err)
		}
	}

	for name, key := range legacyEnv {
		if val, ok := os.LookupEnv(name); ok && val != "" {
			if err := k.Set(key, val); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !c.Agent.Offline && c.Agent.APIKey == "" {
		return errors.New("GOOGLE_API_KEY environment variable not set (or enable agent.offline)")
	}
	if c.Agent.MaxAttempts < 1 {
		return fmt.Errorf("agent.max_attempts must be at least 1, got %d", c.Agent.MaxAttempts)
	}
	switch c.Store.Type {
	case "memory", "file", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store.type %q (memory, file, redis, sqlite)", c.Store.Type)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q (text, json)", c.Log.Format)
	}
	if c.Store.TTL < 0 {
		return errors.New("store.ttl must not be negative")
	}
	return nil
}
