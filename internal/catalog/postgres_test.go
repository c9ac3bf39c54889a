package catalog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		case **int64:
			if v, ok := r.values[i].(int64); ok {
				*p = &v
			} else {
				*p = nil
			}
		}
	}
	return nil
}

type fakeDB struct {
	row      fakeRow
	lastSQL  string
	lastArgs []any
	deadline bool
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	_, f.deadline = ctx.Deadline()
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

func TestPostgresLookupWithOffer(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{"a", int64(50), int64(3), int64(140)}}}
	store := NewPostgresStore(db, time.Second)

	rec, err := store.Lookup(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, pricing.PriceRecord{Code: "a", UnitPrice: 50, Offer: &pricing.OfferTerms{BundleQuantity: 3, BundlePrice: 140}}, rec)
	require.Equal(t, []any{"a"}, db.lastArgs)
	require.True(t, db.deadline)
}

func TestPostgresLookupWithoutOffer(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{"c", int64(25), nil, nil}}}
	rec, err := NewPostgresStore(db, 0).Lookup(context.Background(), "c")
	require.NoError(t, err)
	require.Nil(t, rec.Offer)
	require.False(t, db.deadline)
}

func TestPostgresLookupNotFound(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewPostgresStore(db, 0).Lookup(context.Background(), "zz")
	require.ErrorIs(t, err, pricing.ErrNotFound)
}

func TestPostgresLookupFailure(t *testing.T) {
	cause := errors.New("conn closed")
	db := &fakeDB{row: fakeRow{err: cause}}
	_, err := NewPostgresStore(db, 0).Lookup(context.Background(), "a")
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, pricing.ErrNotFound)
}

func TestPostgresUpsertNormalizesCode(t *testing.T) {
	db := &fakeDB{}
	store := NewPostgresStore(db, 0)

	require.NoError(t, store.UpsertPrice(context.Background(), PriceRow{Code: " A ", Price: 50}))
	require.Equal(t, []any{"a", int64(50)}, db.lastArgs)

	require.Error(t, store.UpsertOffer(context.Background(), OfferRow{Code: "a", Amount: 0}))
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Postgres not available: %v", err)
	}

	store := NewPostgresStore(pool, time.Second)
	require.NoError(t, store.UpsertPrice(ctx, PriceRow{Code: "it-pg", Price: 40}))
	require.NoError(t, store.UpsertOffer(ctx, OfferRow{Code: "it-pg", Amount: 2, OfferPrice: 70}))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM offers WHERE code = 'it-pg'`)
		_, _ = pool.Exec(context.Background(), `DELETE FROM prices WHERE code = 'it-pg'`)
	})

	rec, err := store.Lookup(ctx, "it-pg")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(40), rec.UnitPrice)
	require.Equal(t, pricing.Money(70), rec.Offer.BundlePrice)

	prices, err := store.ListPrices(ctx)
	require.NoError(t, err)
	require.Contains(t, prices, PriceRow{Code: "it-pg", Price: 40})
}
