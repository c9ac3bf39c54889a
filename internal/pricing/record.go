package pricing

import "fmt"

// Money represents a monetary value stored in minor units.
type Money = int64

// OfferTerms describes a bulk offer: every BundleQuantity units cost BundlePrice.
type OfferTerms struct {
	BundleQuantity int   `json:"bundleQuantity"`
	BundlePrice    Money `json:"bundlePrice"`
}

// PriceRecord is a catalog entry. A nil Offer means the item is sold at unit price only.
type PriceRecord struct {
	Code      string      `json:"code"`
	UnitPrice Money       `json:"unitPrice"`
	Offer     *OfferTerms `json:"offer,omitempty"`
}

// Validate reports ErrMalformedRecord when the record cannot be priced.
func (r PriceRecord) Validate() error {
	if r.UnitPrice < 0 {
		return fmt.Errorf("%w: negative unit price %d", ErrMalformedRecord, r.UnitPrice)
	}
	if r.Offer == nil {
		return nil
	}
	if r.Offer.BundleQuantity <= 0 {
		return fmt.Errorf("%w: bundle quantity must be positive, got %d", ErrMalformedRecord, r.Offer.BundleQuantity)
	}
	if r.Offer.BundlePrice < 0 {
		return fmt.Errorf("%w: negative bundle price %d", ErrMalformedRecord, r.Offer.BundlePrice)
	}
	return nil
}

// Clamped reports whether the offer costs more than buying the bundle at unit price.
func (o OfferTerms) Clamped(unitPrice Money) bool {
	return o.BundlePrice > Money(o.BundleQuantity)*unitPrice
}

// EffectivePrice returns the bundle price, capped at BundleQuantity * unitPrice.
func (o OfferTerms) EffectivePrice(unitPrice Money) Money {
	if o.Clamped(unitPrice) {
		return Money(o.BundleQuantity) * unitPrice
	}
	return o.BundlePrice
}

// Apply computes the line total for quantity units of record.
//
// Offers are applied greedily: as many whole bundles as fit, the remainder at
// unit price. With a single offer tier and a non-clamped bundle price this is
// also the cheapest split; it is not a cost minimiser for multiple tiers.
func Apply(record PriceRecord, quantity int) Money {
	if quantity <= 0 {
		return 0
	}
	qty := Money(quantity)
	if record.Offer == nil || record.Offer.BundleQuantity <= 0 {
		return record.UnitPrice * qty
	}
	size := Money(record.Offer.BundleQuantity)
	bundles := qty / size
	remainder := qty % size
	return bundles*record.Offer.EffectivePrice(record.UnitPrice) + remainder*record.UnitPrice
}
