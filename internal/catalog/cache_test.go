package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

type countingLookup struct {
	next  pricing.CatalogLookup
	err   error
	calls int
}

func (c *countingLookup) Lookup(ctx context.Context, code string) (pricing.PriceRecord, error) {
	c.calls++
	if c.err != nil {
		return pricing.PriceRecord{}, c.err
	}
	return c.next.Lookup(ctx, code)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedLookupReadsThrough(t *testing.T) {
	_, client := newRedis(t)
	backend := &countingLookup{next: seededMemoryStore(t)}
	lookup := NewCachedLookup(CachedLookupConfig{Next: backend, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()})
	ctx := context.Background()

	first, err := lookup.Lookup(ctx, "a")
	require.NoError(t, err)
	second, err := lookup.Lookup(ctx, "a")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, pricing.Money(50), second.UnitPrice)
	require.Equal(t, 140, int(second.Offer.BundlePrice))
	require.Equal(t, 1, backend.calls)
}

func TestCachedLookupCachesMisses(t *testing.T) {
	mr, client := newRedis(t)
	backend := &countingLookup{next: seededMemoryStore(t)}
	lookup := NewCachedLookup(CachedLookupConfig{Next: backend, Cache: NewCache(client, time.Minute), MissTTL: 5 * time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := lookup.Lookup(ctx, "zz")
		require.ErrorIs(t, err, pricing.ErrNotFound)
	}
	require.Equal(t, 1, backend.calls)

	mr.FastForward(6 * time.Second)
	_, err := lookup.Lookup(ctx, "zz")
	require.ErrorIs(t, err, pricing.ErrNotFound)
	require.Equal(t, 2, backend.calls)
}

func TestCachedLookupDoesNotCacheStoreErrors(t *testing.T) {
	_, client := newRedis(t)
	backend := &countingLookup{next: seededMemoryStore(t), err: errors.New("down")}
	lookup := NewCachedLookup(CachedLookupConfig{Next: backend, Cache: NewCache(client, time.Minute)})
	ctx := context.Background()

	_, err := lookup.Lookup(ctx, "a")
	require.Error(t, err)

	backend.err = nil
	rec, err := lookup.Lookup(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "a", rec.Code)
	require.Equal(t, 2, backend.calls)
}

func TestCachedLookupFallsThroughWhenRedisIsDown(t *testing.T) {
	mr, client := newRedis(t)
	backend := &countingLookup{next: seededMemoryStore(t)}
	lookup := NewCachedLookup(CachedLookupConfig{Next: backend, Cache: NewCache(client, time.Minute)})
	mr.Close()

	rec, err := lookup.Lookup(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(25), rec.UnitPrice)
}

func TestCachedLookupInvalidate(t *testing.T) {
	_, client := newRedis(t)
	store := seededMemoryStore(t)
	backend := &countingLookup{next: store}
	lookup := NewCachedLookup(CachedLookupConfig{Next: backend, Cache: NewCache(client, time.Minute)})
	ctx := context.Background()

	_, err := lookup.Lookup(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, store.UpsertPrice(ctx, PriceRow{Code: "c", Price: 30}))
	require.NoError(t, lookup.Invalidate(ctx, "C"))

	rec, err := lookup.Lookup(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(30), rec.UnitPrice)
}
