package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// CompleteMessage is reported with every successful checkout.
const CompleteMessage = "Checkout complete"

// ErrorKind classifies a failed checkout.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindStoreError   ErrorKind = "store_error"
)

// Error is returned when a checkout aborts. No partial subtotal accompanies it.
type Error struct {
	Index int
	Code  string
	Kind  ErrorKind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checkout: line %d (%q): %s: %v", e.Index, e.Code, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LinePricer prices a single checkout line.
type LinePricer interface {
	LineTotal(ctx context.Context, code string, quantity int) (pricing.Money, error)
}

// Result is the outcome of a successful checkout.
type Result struct {
	Message  string        `json:"message"`
	Subtotal pricing.Money `json:"total"`
}

type Service struct {
	Pricer LinePricer
	Logger zerolog.Logger
}

func NewService(pricer LinePricer, logger zerolog.Logger) *Service {
	return &Service{Pricer: pricer, Logger: logger.With().Str("component", "checkout").Logger()}
}

// Checkout prices lines in input order and returns their sum.
func (s *Service) Checkout(ctx context.Context, lines []pricing.Line) (Result, error) {
	if s == nil || s.Pricer == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	logger := obs.LoggerFrom(ctx, s.Logger).With().
		Str("checkout_id", uuid.NewString()).
		Logger()
	if obs.CheckoutLines != nil {
		obs.CheckoutLines.Observe(float64(len(lines)))
	}

	var subtotal pricing.Money
	for i, line := range lines {
		total, err := s.Pricer.LineTotal(ctx, line.Code, line.Quantity)
		event := logger.Info()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.Int("position", i).
			Str("code", line.Code).
			Int("quantity", line.Quantity).
			Int64("line_total", total).
			Msg("checkout_line")
		if err != nil {
			cerr := &Error{Index: i, Code: line.Code, Kind: classify(err), Err: err}
			recordOutcome(string(cerr.Kind))
			logger.Warn().
				Int("position", i).
				Str("kind", string(cerr.Kind)).
				Err(err).
				Msg("checkout_failed")
			return Result{}, cerr
		}
		subtotal += total
	}

	recordOutcome("ok")
	logger.Info().
		Int("lines", len(lines)).
		Int64("subtotal", subtotal).
		Msg("checkout_complete")
	return Result{Message: CompleteMessage, Subtotal: subtotal}, nil
}

func classify(err error) ErrorKind {
	if pricing.IsInputError(err) {
		return KindInvalidInput
	}
	return KindStoreError
}

func recordOutcome(result string) {
	if obs.CheckoutTotal == nil {
		return
	}
	obs.CheckoutTotal.WithLabelValues(result).Inc()
}
