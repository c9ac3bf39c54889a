package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// MySQLStore reads the catalog from MySQL through database/sql.
type MySQLStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewMySQLStore(db *sql.DB, timeout time.Duration) *MySQLStore {
	return &MySQLStore{db: db, timeout: timeout}
}

func (m *MySQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *MySQLStore) Lookup(ctx context.Context, code string) (pricing.PriceRecord, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var (
		rowCode            string
		price              int64
		amount, offerPrice sql.NullInt64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT p.code, p.price, o.amount, o.offerprice
		FROM prices p
		LEFT JOIN offers o ON o.code = p.code
		WHERE p.code = ?`, code,
	).Scan(&rowCode, &price, &amount, &offerPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.PriceRecord{}, pricing.ErrNotFound
	}
	if err != nil {
		return pricing.PriceRecord{}, fmt.Errorf("query price %q: %w", code, err)
	}
	return recordFromColumns(rowCode, price, nullable(amount), nullable(offerPrice)), nil
}

func (m *MySQLStore) ListPrices(ctx context.Context) ([]PriceRow, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	rows, err := m.db.QueryContext(ctx, `SELECT code, price FROM prices ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var out []PriceRow
	for rows.Next() {
		var p PriceRow
		if err := rows.Scan(&p.Code, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (m *MySQLStore) ListOffers(ctx context.Context) ([]OfferRow, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	rows, err := m.db.QueryContext(ctx, `SELECT code, amount, offerprice FROM offers ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []OfferRow
	for rows.Next() {
		var o OfferRow
		if err := rows.Scan(&o.Code, &o.Amount, &o.OfferPrice); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (m *MySQLStore) UpsertPrice(ctx context.Context, row PriceRow) error {
	if err := validatePrice(row); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO prices (code, price) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE price = VALUES(price)`,
		normalizeCode(row.Code), row.Price,
	)
	if err != nil {
		return fmt.Errorf("upsert price %q: %w", row.Code, err)
	}
	return nil
}

func (m *MySQLStore) UpsertOffer(ctx context.Context, row OfferRow) error {
	if err := validateOffer(row); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO offers (code, amount, offerprice) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE amount = VALUES(amount), offerprice = VALUES(offerprice)`,
		normalizeCode(row.Code), row.Amount, row.OfferPrice,
	)
	if err != nil {
		return fmt.Errorf("upsert offer %q: %w", row.Code, err)
	}
	return nil
}

func nullable(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
