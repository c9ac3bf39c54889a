package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// PriceRow is a row of the prices table.
type PriceRow struct {
	Code  string        `json:"code"`
	Price pricing.Money `json:"price"`
}

// OfferRow is a row of the offers table.
type OfferRow struct {
	Code       string        `json:"code"`
	Amount     int           `json:"amount"`
	OfferPrice pricing.Money `json:"offerprice"`
}

// Lister exposes the full catalog for listing endpoints.
type Lister interface {
	ListPrices(ctx context.Context) ([]PriceRow, error)
	ListOffers(ctx context.Context) ([]OfferRow, error)
}

// Writer upserts catalog rows. Codes are stored lower-cased.
type Writer interface {
	UpsertPrice(ctx context.Context, row PriceRow) error
	UpsertOffer(ctx context.Context, row OfferRow) error
}

// Store is a full catalog backend.
type Store interface {
	pricing.CatalogLookup
	Lister
	Writer
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ErrOrphanOffer is returned when an offer names a code without a price row.
var ErrOrphanOffer = errors.New("catalog: offer has no matching price")

// validateCode rejects codes the pricing engine would refuse at checkout.
func validateCode(kind, code string) error {
	normalized, err := pricing.NormalizeCode(code)
	if err != nil {
		return fmt.Errorf("catalog: %s row code %q: %w", kind, code, err)
	}
	if normalized == "" {
		return fmt.Errorf("catalog: %s row requires a code", kind)
	}
	return nil
}

func validatePrice(row PriceRow) error {
	if err := validateCode("price", row.Code); err != nil {
		return err
	}
	if row.Price < 0 {
		return fmt.Errorf("catalog: price for %q must not be negative", row.Code)
	}
	return nil
}

func validateOffer(row OfferRow) error {
	if err := validateCode("offer", row.Code); err != nil {
		return err
	}
	if row.Amount <= 0 {
		return fmt.Errorf("catalog: offer amount for %q must be positive", row.Code)
	}
	if row.OfferPrice < 0 {
		return fmt.Errorf("catalog: offer price for %q must not be negative", row.Code)
	}
	return nil
}

// recordFromColumns builds a PriceRecord from a prices LEFT JOIN offers row.
func recordFromColumns(code string, price int64, amount, offerPrice *int64) pricing.PriceRecord {
	rec := pricing.PriceRecord{Code: code, UnitPrice: price}
	if amount != nil && offerPrice != nil {
		rec.Offer = &pricing.OfferTerms{BundleQuantity: int(*amount), BundlePrice: *offerPrice}
	}
	return rec
}
