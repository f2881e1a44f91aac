// Package config loads the client's YAML configuration. Every field falls back
// config -> env -> default.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/sdk/go/client"
)

// Environment variables consulted when the file leaves a field empty.
const (
	EnvConfig      = "NOODLES_CONFIG"
	EnvURL         = "NOODLES_URL"
	EnvClientName  = "NOODLES_CLIENT_NAME"
	EnvMetricsAddr = "NOODLES_METRICS_ADDR"
	EnvCacheDir    = "NOODLES_CACHE_DIR"
)

type Config struct {
	Client      ClientConfig    `yaml:"client"`
	Transport   TransportConfig `yaml:"transport"`
	Resource    ResourceConfig  `yaml:"resource"`
	Log         LogConfig       `yaml:"log"`
	MetricsAddr string          `yaml:"metrics_addr"`
}

type ClientConfig struct {
	URL                  string `yaml:"url"`
	Name                 string `yaml:"name"`
	ReconnectBase        string `yaml:"reconnect_base"`
	MaxReconnectAttempts *int   `yaml:"max_reconnect_attempts"`
	ApplyQueueSize       int    `yaml:"apply_queue_size"`
	InvokeTimeout        string `yaml:"invoke_timeout"`
	MaxPendingInvokes    int    `yaml:"max_pending_invokes"`
}

type TransportConfig struct {
	HandshakeTimeout   string `yaml:"handshake_timeout"`
	WriteTimeout       string `yaml:"write_timeout"`
	MaxFrameSize       int64  `yaml:"max_frame_size"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type ResourceConfig struct {
	// CacheDir enables the badger cache; ":memory:" keeps it in memory.
	CacheDir     string `yaml:"cache_dir"`
	CacheTTL     string `yaml:"cache_ttl"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path, or at $NOODLES_CONFIG when path is empty.
// With neither set it returns an empty Config, so every field takes its
// env or default value.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return &cfg, nil
}

func (c *Config) GetURL() string {
	return stringWithEnvFallback(c.Client.URL, EnvURL, "ws://localhost:50000")
}

func (c *Config) GetClientName() string {
	return stringWithEnvFallback(c.Client.Name, EnvClientName, "noodles-go")
}

// GetMetricsAddr is empty when metrics are not served.
func (c *Config) GetMetricsAddr() string {
	return stringWithEnvFallback(c.MetricsAddr, EnvMetricsAddr, "")
}

// GetCacheDir is empty when resource caching is off.
func (c *Config) GetCacheDir() string {
	return stringWithEnvFallback(c.Resource.CacheDir, EnvCacheDir, "")
}

func (c *Config) GetCacheTTL() (time.Duration, error) {
	return durationOr(c.Resource.CacheTTL, 24*time.Hour)
}

func (c *Config) GetFetchTimeout() (time.Duration, error) {
	return durationOr(c.Resource.FetchTimeout, 30*time.Second)
}

func (c *Config) GetLogLevel() (log.Level, error) {
	return log.ParseLevel(c.Log.Level)
}

// ClientConfig builds the client configuration, starting from
// client.DefaultClientConfig and overriding what the file sets.
func (c *Config) ClientConfig() (client.Config, error) {
	cfg := client.DefaultClientConfig()
	cfg.URL = c.GetURL()
	cfg.ClientName = c.GetClientName()

	var err error
	if cfg.ReconnectBase, err = durationOr(c.Client.ReconnectBase, cfg.ReconnectBase); err != nil {
		return cfg, errors.Wrap(err, "client.reconnect_base")
	}
	if c.Client.MaxReconnectAttempts != nil {
		cfg.MaxReconnectAttempts = *c.Client.MaxReconnectAttempts
	}
	if c.Client.ApplyQueueSize > 0 {
		cfg.ApplyQueueSize = c.Client.ApplyQueueSize
	}
	if cfg.World.PendingTTL, err = durationOr(c.Client.InvokeTimeout, cfg.World.PendingTTL); err != nil {
		return cfg, errors.Wrap(err, "client.invoke_timeout")
	}
	if c.Client.MaxPendingInvokes > 0 {
		cfg.World.MaxPending = c.Client.MaxPendingInvokes
	}

	if cfg.Transport.HandshakeTimeout, err = durationOr(c.Transport.HandshakeTimeout, cfg.Transport.HandshakeTimeout); err != nil {
		return cfg, errors.Wrap(err, "transport.handshake_timeout")
	}
	if cfg.Transport.WriteTimeout, err = durationOr(c.Transport.WriteTimeout, cfg.Transport.WriteTimeout); err != nil {
		return cfg, errors.Wrap(err, "transport.write_timeout")
	}
	if c.Transport.MaxFrameSize > 0 {
		cfg.Transport.MaxFrameSize = c.Transport.MaxFrameSize
	}
	cfg.Transport.InsecureSkipVerify = c.Transport.InsecureSkipVerify

	if cfg.Decoder.FetchTimeout, err = c.GetFetchTimeout(); err != nil {
		return cfg, errors.Wrap(err, "resource.fetch_timeout")
	}
	return cfg, nil
}

// stringWithEnvFallback returns the first non-empty of value, $envVar and def.
func stringWithEnvFallback(value, envVar, def string) string {
	if value != "" {
		return value
	}
	if env := os.Getenv(envVar); env != "" {
		return env
	}
	return def
}

func durationOr(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	return time.ParseDuration(value)
}
