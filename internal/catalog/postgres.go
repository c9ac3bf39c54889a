package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgLookup      = `SELECT p.code, p.price, o.amount, o.offerprice
FROM prices p
LEFT JOIN offers o ON o.code = p.code
WHERE p.code = $1`
	pgListPrices  = `SELECT code, price FROM prices ORDER BY code`
	pgListOffers  = `SELECT code, amount, offerprice FROM offers ORDER BY code`
	pgUpsertPrice = `INSERT INTO prices (code, price) VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET price = EXCLUDED.price`
	pgUpsertOffer = `INSERT INTO offers (code, amount, offerprice) VALUES ($1, $2, $3)
ON CONFLICT (code) DO UPDATE SET amount = EXCLUDED.amount, offerprice = EXCLUDED.offerprice`
)

// PostgresStore reads the catalog from Postgres.
type PostgresStore struct {
	db      DBTX
	timeout time.Duration
}

// NewPostgresStore wraps db. A positive timeout bounds every query.
func NewPostgresStore(db DBTX, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Lookup implements pricing.CatalogLookup.
func (s *PostgresStore) Lookup(ctx context.Context, code string) (pricing.PriceRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		rowCode            string
		price              int64
		amount, offerPrice *int64
	)
	err := s.db.QueryRow(ctx, pgLookup, code).Scan(&rowCode, &price, &amount, &offerPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.PriceRecord{}, pricing.ErrNotFound
	}
	if err != nil {
		return pricing.PriceRecord{}, fmt.Errorf("query price %q: %w", code, err)
	}
	return recordFromColumns(rowCode, price, amount, offerPrice), nil
}

// ListPrices returns every price row ordered by code.
func (s *PostgresStore) ListPrices(ctx context.Context) ([]PriceRow, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, pgListPrices)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PriceRow, error) {
		var p PriceRow
		err := row.Scan(&p.Code, &p.Price)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan prices: %w", err)
	}
	return out, nil
}

// ListOffers returns every offer row ordered by code.
func (s *PostgresStore) ListOffers(ctx context.Context) ([]OfferRow, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, pgListOffers)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OfferRow, error) {
		var o OfferRow
		err := row.Scan(&o.Code, &o.Amount, &o.OfferPrice)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan offers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertPrice(ctx context.Context, row PriceRow) error {
	if err := validatePrice(row); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, pgUpsertPrice, normalizeCode(row.Code), row.Price); err != nil {
		return fmt.Errorf("upsert price %q: %w", row.Code, err)
	}
	return nil
}

func (s *PostgresStore) UpsertOffer(ctx context.Context, row OfferRow) error {
	if err := validateOffer(row); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, pgUpsertOffer, normalizeCode(row.Code), row.Amount, row.OfferPrice); err != nil {
		return fmt.Errorf("upsert offer %q: %w", row.Code, err)
	}
	return nil
}
