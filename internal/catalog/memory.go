package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// MemoryStore is an in-process catalog, typically seeded from CSV.
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[string]pricing.Money
	offers map[string]OfferRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices: make(map[string]pricing.Money),
		offers: make(map[string]OfferRow),
	}
}

func (m *MemoryStore) Lookup(_ context.Context, code string) (pricing.PriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.prices[code]
	if !ok {
		return pricing.PriceRecord{}, pricing.ErrNotFound
	}
	rec := pricing.PriceRecord{Code: code, UnitPrice: price}
	if offer, ok := m.offers[code]; ok {
		rec.Offer = &pricing.OfferTerms{BundleQuantity: offer.Amount, BundlePrice: offer.OfferPrice}
	}
	return rec, nil
}

func (m *MemoryStore) ListPrices(context.Context) ([]PriceRow, error) {
	m.mu.RLock()
	out := make([]PriceRow, 0, len(m.prices))
	for code, price := range m.prices {
		out = append(out, PriceRow{Code: code, Price: price})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) ListOffers(context.Context) ([]OfferRow, error) {
	m.mu.RLock()
	out := make([]OfferRow, 0, len(m.offers))
	for _, offer := range m.offers {
		out = append(out, offer)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) UpsertPrice(_ context.Context, row PriceRow) error {
	if err := validatePrice(row); err != nil {
		return err
	}
	m.mu.Lock()
	m.prices[normalizeCode(row.Code)] = row.Price
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) UpsertOffer(_ context.Context, row OfferRow) error {
	if err := validateOffer(row); err != nil {
		return err
	}
	row.Code = normalizeCode(row.Code)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prices[row.Code]; !ok {
		return fmt.Errorf("%w: %q", ErrOrphanOffer, row.Code)
	}
	m.offers[row.Code] = row
	return nil
}
