package resource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/mesh.bin":
			_, _ = w.Write([]byte{1, 2, 3, 4})
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fetchRecorder struct {
	cached, network, failed int
}

func (r *fetchRecorder) ResourceFetched(cached bool, err error) {
	switch {
	case err != nil:
		r.failed++
	case cached:
		r.cached++
	default:
		r.network++
	}
}

func TestHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	f := NewHTTPFetcher(time.Second, log.NewNop())

	data, err := f.Fetch(context.Background(), srv.URL+"/mesh.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, protocol.ErrFetchFailed)

	_, err = f.Fetch(context.Background(), "ftp://example.com/x")
	assert.ErrorIs(t, err, protocol.ErrUnsupportedScheme)
}

func TestHTTPFetcherServesWebsocketLocations(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	f := NewHTTPFetcher(time.Second, log.NewNop())

	data, err := f.Fetch(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/mesh.bin")

	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFetcherTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	f := NewHTTPFetcher(20*time.Millisecond, log.NewNop())

	_, err := f.Fetch(context.Background(), srv.URL+"/slow")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedFetcherServesSecondFetchFromCache(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	cache, err := OpenCache(MemoryDir, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	rec := &fetchRecorder{}
	f := NewCachedFetcher(NewHTTPFetcher(time.Second, log.NewNop()), cache, rec, log.NewNop())

	first, err := f.Fetch(context.Background(), srv.URL+"/mesh.bin")
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), srv.URL+"/mesh.bin")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, rec.network)
	assert.Equal(t, 1, rec.cached)
}

func TestCachedFetcherDoesNotCacheFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	cache, err := OpenCache(MemoryDir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	rec := &fetchRecorder{}
	f := NewCachedFetcher(NewHTTPFetcher(time.Second, log.NewNop()), cache, rec, log.NewNop())

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 2, rec.failed)
}

func TestCacheOnDisk(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir, 0)
	require.NoError(t, err)
	require.NoError(t, cache.Put("http://h/a", []byte("payload")))
	require.NoError(t, cache.Close())

	cache, err = OpenCache(dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	data, ok, err := cache.Get("http://h/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)

	_, ok, err = cache.Get("http://h/b")
	require.NoError(t, err)
	assert.False(t, ok)
}
