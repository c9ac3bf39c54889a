package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

const cacheKeyPrefix = "catalog:price:"

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with ttl, or the configured TTL when ttl is zero.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// cachedRecord distinguishes a cached absence from a cached record.
type cachedRecord struct {
	Missing bool                `json:"missing,omitempty"`
	Record  pricing.PriceRecord `json:"record"`
}

// CachedLookup is a read-through Redis cache in front of another lookup.
// Unknown codes are cached for MissTTL. Redis failures fall through to the
// wrapped lookup and never fail a checkout.
type CachedLookup struct {
	next    pricing.CatalogLookup
	cache   *Cache
	missTTL time.Duration
	logger  zerolog.Logger
}

// CachedLookupConfig groups CachedLookup dependencies.
type CachedLookupConfig struct {
	Next    pricing.CatalogLookup
	Cache   *Cache
	MissTTL time.Duration
	Logger  zerolog.Logger
}

func NewCachedLookup(cfg CachedLookupConfig) *CachedLookup {
	missTTL := cfg.MissTTL
	if missTTL <= 0 && cfg.Cache != nil {
		missTTL = cfg.Cache.ttl / 4
	}
	return &CachedLookup{next: cfg.Next, cache: cfg.Cache, missTTL: missTTL, logger: cfg.Logger}
}

func (c *CachedLookup) Lookup(ctx context.Context, code string) (pricing.PriceRecord, error) {
	key := cacheKeyPrefix + code
	var cached cachedRecord
	found, err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err != nil:
		recordCache("error")
		c.logger.Warn().Err(err).Str("code", code).Msg("catalog_cache_read_failed")
	case found:
		recordCache("hit")
		if cached.Missing {
			return pricing.PriceRecord{}, pricing.ErrNotFound
		}
		return cached.Record, nil
	default:
		recordCache("miss")
	}

	rec, err := c.next.Lookup(ctx, code)
	switch {
	case errors.Is(err, pricing.ErrNotFound):
		c.store(ctx, key, cachedRecord{Missing: true}, c.missTTL)
		return pricing.PriceRecord{}, err
	case err != nil:
		return pricing.PriceRecord{}, err
	}
	c.store(ctx, key, cachedRecord{Record: rec}, 0)
	return rec, nil
}

// Invalidate drops cached entries for codes.
func (c *CachedLookup) Invalidate(ctx context.Context, codes ...string) error {
	if c.cache == nil || c.cache.client == nil || len(codes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, cacheKeyPrefix+normalizeCode(code))
	}
	return c.cache.client.Del(ctx, keys...).Err()
}

func (c *CachedLookup) store(ctx context.Context, key string, v cachedRecord, ttl time.Duration) {
	if err := c.cache.SetJSON(ctx, key, v, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
}

func recordCache(result string) {
	if obs.CatalogCacheTotal == nil {
		return
	}
	obs.CatalogCacheTotal.WithLabelValues(result).Inc()
}
