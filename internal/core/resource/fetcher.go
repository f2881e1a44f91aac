// Package resource loads bytes the server publishes by URI instead of inline.
package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

// DefaultMaxSize caps a single download.
const DefaultMaxSize int64 = 1 << 30

// FetchHooks observes fetch outcomes. metrics.Metrics implements it.
type FetchHooks interface {
	ResourceFetched(cached bool, err error)
}

type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	maxSize int64
	logger  log.Log
}

// NewHTTPFetcher fetches http and https URIs. ws and wss locations, the default
// for structured locations, are served over http and https on the same host and
// port. Each request is bounded by timeout on top of the caller's context.
func NewHTTPFetcher(timeout time.Duration, logger log.Log) *HTTPFetcher {
	if logger == nil {
		logger = log.Provide()
	}
	return &HTTPFetcher{
		client:  &http.Client{},
		timeout: timeout,
		maxSize: DefaultMaxSize,
		logger:  logger.With(log.Component("fetcher")),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(protocol.ErrInvalidLocation, err.Error())
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, errors.Wrapf(protocol.ErrUnsupportedScheme, "fetch %s", uri)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(protocol.ErrFetchFailed, "fetch %s: status %d", uri, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", uri)
	}
	if int64(len(data)) > f.maxSize {
		return nil, errors.Wrap(protocol.ErrFetchFailed, fmt.Sprintf("%s exceeds %d bytes", uri, f.maxSize))
	}

	f.logger.Debug("resource fetched",
		log.String("uri", uri), log.Int("bytes", len(data)), log.Duration("took", time.Since(started)))
	return data, nil
}
