package injector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/noodles/internal/config"
	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/observability/metrics"
	"github.com/zeusync/noodles/internal/core/protocol"
	"github.com/zeusync/noodles/internal/core/resource"
	"github.com/zeusync/noodles/sdk/go/client"
)

// ConfigPath is the -config flag value; empty falls back to $NOODLES_CONFIG.
type ConfigPath string

// App is everything cmd/client needs.
type App struct {
	Config  *config.Config
	Logger  log.Log
	Metrics *metrics.Metrics
	Client  *client.Client
}

func ProvideConfig(path ConfigPath) (*config.Config, error) {
	return config.Load(string(path))
}

func ProvideLogger(cfg *config.Config) (log.Log, error) {
	level, err := cfg.GetLogLevel()
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

func ProvideMetrics() (*metrics.Metrics, error) {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideFetcher builds the HTTP fetcher, wrapped in the badger cache when a
// cache dir is configured.
func ProvideFetcher(cfg *config.Config, logger log.Log, m *metrics.Metrics) (protocol.Fetcher, func(), error) {
	timeout, err := cfg.GetFetchTimeout()
	if err != nil {
		return nil, nil, err
	}
	fetcher := resource.NewHTTPFetcher(timeout, logger)

	dir := cfg.GetCacheDir()
	if dir == "" {
		return fetcher, func() {}, nil
	}
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, nil, err
	}
	cache, err := resource.OpenCache(dir, ttl)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := cache.Close(); err != nil {
			logger.Warn("Failed to close resource cache", log.Error(err))
		}
	}
	return resource.NewCachedFetcher(fetcher, cache, m, logger), cleanup, nil
}

func ProvideClient(cfg *config.Config, logger log.Log, fetcher protocol.Fetcher, m *metrics.Metrics) (*client.Client, func(), error) {
	cc, err := cfg.ClientConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := client.NewClient(cc, logger, client.WithFetcher(fetcher), client.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close client", log.Error(err))
		}
	}
	return c, cleanup, nil
}
