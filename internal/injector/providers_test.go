package injector

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/noodles/internal/config"
	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/observability/metrics"
	"github.com/zeusync/noodles/internal/core/resource"
	"github.com/zeusync/noodles/sdk/go/client"
)

func testMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestProvideFetcherWithoutCache(t *testing.T) {
	t.Setenv(config.EnvCacheDir, "")
	fetcher, cleanup, err := ProvideFetcher(&config.Config{}, log.NewNop(), testMetrics(t))
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &resource.HTTPFetcher{}, fetcher)
}

func TestProvideFetcherWithMemoryCache(t *testing.T) {
	cfg := &config.Config{Resource: config.ResourceConfig{CacheDir: resource.MemoryDir}}
	fetcher, cleanup, err := ProvideFetcher(cfg, log.NewNop(), testMetrics(t))
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &resource.CachedFetcher{}, fetcher)
}

func TestProvideClient(t *testing.T) {
	t.Setenv(config.EnvURL, "")
	cfg := &config.Config{Client: config.ClientConfig{URL: "ws://127.0.0.1:1", Name: "wired"}}
	c, cleanup, err := ProvideClient(cfg, log.NewNop(), resource.NewHTTPFetcher(0, log.NewNop()), testMetrics(t))
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, client.StateDisconnected, c.State())
}

func TestProvideClientRejectsScheme(t *testing.T) {
	cfg := &config.Config{Client: config.ClientConfig{URL: "ftp://127.0.0.1"}}
	_, _, err := ProvideClient(cfg, log.NewNop(), nil, testMetrics(t))
	assert.Error(t, err)
}
