package contentstore

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/totegamma/healthvault/internal/usecase"
)

// BlobCache holds blobs by locator. Locators name immutable content, so
// entries never go stale.
type BlobCache interface {
	Get(locator string) ([]byte, bool)
	Set(locator string, data []byte)
}

// CachedStore is a read-through cache in front of a BlobStore.
type CachedStore struct {
	backend usecase.BlobStore
	cache   BlobCache
}

func NewCachedStore(backend usecase.BlobStore, c BlobCache) *CachedStore {
	return &CachedStore{backend: backend, cache: c}
}

func (s *CachedStore) Put(ctx context.Context, data []byte) (string, error) {
	locator, err := s.backend.Put(ctx, data)
	if err != nil {
		return "", err
	}
	s.cache.Set(locator, data)
	return locator, nil
}

func (s *CachedStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if data, ok := s.cache.Get(locator); ok {
		return data, nil
	}
	data, err := s.backend.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	s.cache.Set(locator, data)
	return data, nil
}

type MemoryCache struct {
	cache *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{cache: cache.New(ttl, ttl+5*time.Minute)}
}

func (c *MemoryCache) Get(locator string) ([]byte, bool) {
	v, found := c.cache.Get(locator)
	if !found {
		return nil, false
	}
	return v.([]byte), true
}

func (c *MemoryCache) Set(locator string, data []byte) {
	c.cache.Set(locator, data, cache.DefaultExpiration)
}

// memcached rejects items above 1MB by default
const memcachedMaxItem = 1 << 20

type MemcachedCache struct {
	client *memcache.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewMemcachedCache(client *memcache.Client, ttl time.Duration, logger *zap.Logger) *MemcachedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemcachedCache{client: client, ttl: ttl, logger: logger}
}

func (c *MemcachedCache) Get(locator string) ([]byte, bool) {
	item, err := c.client.Get("blob:" + locator)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			c.logger.Debug("memcached get failed", zap.String("locator", locator), zap.Error(err))
		}
		return nil, false
	}
	return item.Value, true
}

func (c *MemcachedCache) Set(locator string, data []byte) {
	if len(data) > memcachedMaxItem {
		return
	}
	err := c.client.Set(&memcache.Item{
		Key:        "blob:" + locator,
		Value:      data,
		Expiration: int32(c.ttl.Seconds()),
	})
	if err != nil {
		c.logger.Debug("memcached set failed", zap.String("locator", locator), zap.Error(err))
	}
}
