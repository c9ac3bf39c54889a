package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

// GuardedLookup protects a catalog backend with a circuit breaker and retries.
// Unknown codes and caller cancellation do not count as backend failures.
type GuardedLookup struct {
	next    pricing.CatalogLookup
	breaker *resilience.Breaker
	policy  resilience.Policy
}

func NewGuardedLookup(next pricing.CatalogLookup, breaker *resilience.Breaker, policy resilience.Policy) *GuardedLookup {
	if policy.Failure == nil {
		policy.Failure = isBackendFailure
	}
	if policy.Neutral == nil {
		policy.Neutral = isCallerCancel
	}
	return &GuardedLookup{next: next, breaker: breaker, policy: policy}
}

func (g *GuardedLookup) Lookup(ctx context.Context, code string) (pricing.PriceRecord, error) {
	return resilience.Call(ctx, g.breaker, g.policy, func(ctx context.Context) (pricing.PriceRecord, error) {
		return g.next.Lookup(ctx, code)
	})
}

func isBackendFailure(err error) bool {
	if err == nil || errors.Is(err, pricing.ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func isCallerCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}
