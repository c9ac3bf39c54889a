package pricing

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-checkout/internal/obs"
)

// MaxCodeLength bounds catalog codes accepted by the engine.
const MaxCodeLength = 64

// CatalogLookup resolves a normalised code to its price record.
// Implementations return ErrNotFound when the code is not in the catalog.
type CatalogLookup interface {
	Lookup(ctx context.Context, code string) (PriceRecord, error)
}

// Engine prices individual checkout lines against a catalog.
type Engine struct {
	catalog CatalogLookup
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// EngineConfig groups Engine dependencies.
type EngineConfig struct {
	Catalog CatalogLookup
	Logger  *zerolog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("pricing: catalog lookup is required")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "pricing").Logger()
	}
	return &Engine{
		catalog: cfg.Catalog,
		logger:  logger,
		tracer:  otel.Tracer("pricing.engine"),
	}, nil
}

// NormalizeCode trims and lower-cases a catalog code. An empty result is valid and means "no item".
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if len(normalized) > MaxCodeLength {
		return "", &InputError{Field: "code", Code: normalized, Reason: "code is too long"}
	}
	for _, r := range normalized {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", &InputError{Field: "code", Code: normalized, Reason: "code contains whitespace or control characters"}
		}
	}
	return normalized, nil
}

// LineTotal returns the price of quantity units of code.
//
// Unknown codes, empty codes and zero quantities price at zero. Negative
// quantities and malformed codes fail with *InputError before the catalog is
// queried; catalog failures and unusable records fail with *StoreError.
func (e *Engine) LineTotal(ctx context.Context, code string, quantity int) (Money, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return 0, err
	}
	if quantity < 0 {
		return 0, &InputError{Field: "quantity", Code: normalized, Reason: "quantity must not be negative"}
	}
	if normalized == "" || quantity == 0 {
		return 0, nil
	}

	ctx, span := e.tracer.Start(ctx, "pricing.LineTotal", trace.WithAttributes(
		attribute.String("catalog.code", normalized),
		attribute.Int("checkout.quantity", quantity),
	))
	defer span.End()

	record, err := e.catalog.Lookup(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordLookup("miss")
			e.logger.Debug().Str("code", normalized).Int("quantity", quantity).Msg("catalog_miss")
			return 0, nil
		}
		recordLookup("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return 0, &StoreError{Code: normalized, Err: err}
	}
	if err := record.Validate(); err != nil {
		recordLookup("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed price record")
		return 0, &StoreError{Code: normalized, Err: err}
	}
	recordLookup("hit")

	if record.Offer != nil && record.Offer.Clamped(record.UnitPrice) {
		e.logger.Warn().
			Str("code", normalized).
			Int64("unit_price", record.UnitPrice).
			Int("bundle_quantity", record.Offer.BundleQuantity).
			Int64("bundle_price", record.Offer.BundlePrice).
			Msg("offer_clamped")
	}
	total := Apply(record, quantity)
	span.SetAttributes(attribute.Int64("pricing.line_total", total))
	return total, nil
}

func recordLookup(result string) {
	if obs.CatalogLookupTotal == nil {
		return
	}
	obs.CatalogLookupTotal.WithLabelValues(result).Inc()
}
