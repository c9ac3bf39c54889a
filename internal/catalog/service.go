package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

const (
	pricesCacheKey = "catalog:list:prices"
	offersCacheKey = "catalog:list:offers"
)

// ErrNotConfigured is returned when the service has no backing store.
var ErrNotConfigured = errors.New("catalog service not configured")

// Service serves catalog listings, caching them in Redis when a cache is configured.
type Service struct {
	lister Lister
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Lister Lister
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{lister: cfg.Lister, cache: cfg.Cache, logger: cfg.Logger}
}

// Prices returns every price row.
func (s *Service) Prices(ctx context.Context) ([]PriceRow, error) {
	if s == nil || s.lister == nil {
		return nil, ErrNotConfigured
	}
	return cachedList(ctx, s, pricesCacheKey, s.lister.ListPrices)
}

// Offers returns every offer row.
func (s *Service) Offers(ctx context.Context) ([]OfferRow, error) {
	if s == nil || s.lister == nil {
		return nil, ErrNotConfigured
	}
	return cachedList(ctx, s, offersCacheKey, s.lister.ListOffers)
}

// InvalidateListings drops the cached listings.
func (s *Service) InvalidateListings(ctx context.Context) error {
	if s == nil || s.cache == nil || s.cache.client == nil {
		return nil
	}
	return s.cache.client.Del(ctx, pricesCacheKey, offersCacheKey).Err()
}

func cachedList[T any](ctx context.Context, s *Service, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	var rows []T
	found, err := s.cache.GetJSON(ctx, key, &rows)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_read_failed")
	}
	if found {
		return rows, nil
	}
	rows, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	if err := s.cache.SetJSON(ctx, key, rows, 0); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
	return rows, nil
}
