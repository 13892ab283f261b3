package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Sync      SyncConfig      `yaml:"sync"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

// EngineConfig configures the local engine daemon.
type EngineConfig struct {
	DBPath string `yaml:"db_path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// SyncConfig configures the outbox worker and its HTTP client.
type SyncConfig struct {
	ServerURL       string `yaml:"server_url"`
	Token           string `yaml:"token"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	BatchSize       int    `yaml:"batch_size"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

// PollInterval returns the worker poll interval as a duration.
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// LLMConfig configures the text-understanding and summary model client.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ServerConfig configures the remote sync service listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig holds the bearer-token verification parameters for the remote
// sync service.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix ATLAS_ and underscore-separated paths:
//
//	ATLAS_ENGINE_DB_PATH, ATLAS_ENGINE_API_KEY,
//	ATLAS_SYNC_SERVER_URL, ATLAS_SYNC_TOKEN,
//	ATLAS_LLM_BASE_URL, ATLAS_LLM_API_KEY, ATLAS_LLM_MODEL,
//	ATLAS_SERVER_HOST, ATLAS_SERVER_PORT,
//	ATLAS_DB_HOST, ATLAS_DB_PORT, ATLAS_DB_NAME,
//	ATLAS_DB_USER, ATLAS_DB_PASSWORD, ATLAS_DB_SSLMODE,
//	ATLAS_AUTH_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Default returns a config with the sync worker's tunables pre-filled.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			PollIntervalSec: 30,
			BatchSize:       25,
			MaxAttempts:     8,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATLAS_ENGINE_DB_PATH"); v != "" {
		cfg.Engine.DBPath = v
	}
	if v := os.Getenv("ATLAS_ENGINE_API_KEY"); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("ATLAS_SYNC_SERVER_URL"); v != "" {
		cfg.Sync.ServerURL = v
	}
	if v := os.Getenv("ATLAS_SYNC_TOKEN"); v != "" {
		cfg.Sync.Token = v
	}
	if v := os.Getenv("ATLAS_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("ATLAS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("ATLAS_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("ATLAS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ATLAS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATLAS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ATLAS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ATLAS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ATLAS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ATLAS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ATLAS_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("ATLAS_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

func (c *Config) validate() error {
	if c.Sync.PollIntervalSec <= 0 {
		return fmt.Errorf("sync.poll_interval_sec must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("sync.max_attempts must be positive")
	}
	return nil
}

// ValidateServer checks the fields the remote sync service requires. The
// engine binaries don't carry a database section, so this is separate from
// the shared validation in Load.
func (c *Config) ValidateServer() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
