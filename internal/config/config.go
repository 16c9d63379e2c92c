package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as "10s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type ServerConfig struct {
	Listen        string `toml:"listen"`
	AllowedOrigin string `toml:"allowed_origin"`
}

type ClientConfig struct {
	Endpoint  string   `toml:"endpoint"`
	Timeout   Duration `toml:"timeout"`
	Strategy  string   `toml:"strategy"`
	AccountID string   `toml:"account_id"`
}

type StorageConfig struct {
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Client   ClientConfig   `toml:"client"`
	Storage  StorageConfig  `toml:"storage"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Log      LogConfig      `toml:"log"`
}

const (
	BackendSQLite   = "sqlite"
	BackendMemgraph = "memgraph"
	BackendMemory   = "memory"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        ":8080",
			AllowedOrigin: "http://localhost:3000",
		},
		Client: ClientConfig{
			Endpoint:  "http://localhost:8080/jmap",
			Timeout:   Duration(10 * time.Second),
			Strategy:  "server",
			AccountID: "primary",
		},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: "./todos.db",
		},
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults. Keys missing from the
// file keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when the file exists and falls back to the
// defaults when it does not. Any other read or parse error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	if origin := os.Getenv("JMAP_ALLOWED_ORIGIN"); origin != "" {
		c.Server.AllowedOrigin = origin
	}
	if endpoint := os.Getenv("JMAP_ENDPOINT"); endpoint != "" {
		c.Client.Endpoint = endpoint
	}
	if timeout := os.Getenv("JMAP_TIMEOUT"); timeout != "" {
		if err := c.Client.Timeout.UnmarshalText([]byte(timeout)); err != nil {
			return fmt.Errorf("JMAP_TIMEOUT: %w", err)
		}
	}
	if strategy := os.Getenv("JMAP_STRATEGY"); strategy != "" {
		c.Client.Strategy = strategy
	}
	if account := os.Getenv("JMAP_ACCOUNT_ID"); account != "" {
		c.Client.AccountID = account
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		c.Storage.SQLitePath = path
	}
	if uri := os.Getenv("MEMGRAPH_URI"); uri != "" {
		c.Memgraph.URI = uri
	}
	if user := os.Getenv("MEMGRAPH_USER"); user != "" {
		c.Memgraph.User = user
	}
	if pass := os.Getenv("MEMGRAPH_PASSWORD"); pass != "" {
		c.Memgraph.Password = pass
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if pretty := os.Getenv("LOG_PRETTY"); pretty != "" {
		v, err := strconv.ParseBool(pretty)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive, got %s", time.Duration(c.Client.Timeout))
	}
	switch strings.ToLower(c.Client.Strategy) {
	case "", "server", "server-side", "client", "client-side":
	default:
		return fmt.Errorf("client.strategy must be \"server\" or \"client\", got %q", c.Client.Strategy)
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendMemgraph:
		if c.Memgraph.URI == "" {
			return errors.New("memgraph.uri is required for the memgraph backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}
