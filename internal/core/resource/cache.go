package resource

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

// MemoryDir selects an in-memory cache instead of an on-disk one.
const MemoryDir = ":memory:"

const keyPrefix = "uri:"

// Cache is a badger-backed byte store keyed by URI.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCache opens (or creates) the store in dir. Entries expire after ttl;
// a zero ttl keeps them until they are overwritten.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == MemoryDir {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open resource cache %q", dir)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached bytes for uri, or false on a miss.
func (c *Cache) Get(uri string) ([]byte, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + uri))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read cache entry %s", uri)
	}
	return data, true, nil
}

func (c *Cache) Put(uri string, data []byte) error {
	entry := badger.NewEntry([]byte(keyPrefix+uri), data)
	if c.ttl > 0 {
		entry = entry.WithTTL(c.ttl)
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	return errors.Wrapf(err, "write cache entry %s", uri)
}

// CachedFetcher serves repeated URIs from a Cache and fills it on misses.
type CachedFetcher struct {
	next   protocol.Fetcher
	cache  *Cache
	hooks  FetchHooks
	logger log.Log
}

// NewCachedFetcher wraps next. hooks may be nil.
func NewCachedFetcher(next protocol.Fetcher, cache *Cache, hooks FetchHooks, logger log.Log) *CachedFetcher {
	if logger == nil {
		logger = log.Provide()
	}
	return &CachedFetcher{
		next:   next,
		cache:  cache,
		hooks:  hooks,
		logger: logger.With(log.Component("resource_cache")),
	}
}

func (f *CachedFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	data, ok, err := f.cache.Get(uri)
	if err != nil {
		f.logger.Warn("cache read failed", log.String("uri", uri), log.Error(err))
	}
	if ok {
		f.observe(true, nil)
		return data, nil
	}

	data, err = f.next.Fetch(ctx, uri)
	f.observe(false, err)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Put(uri, data); err != nil {
		f.logger.Warn("cache write failed", log.String("uri", uri), log.Error(err))
	}
	return data, nil
}

func (f *CachedFetcher) observe(cached bool, err error) {
	if f.hooks != nil {
		f.hooks.ResourceFetched(cached, err)
	}
}
