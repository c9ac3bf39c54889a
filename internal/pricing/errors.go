package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a CatalogLookup when no record matches the code.
	ErrNotFound = errors.New("pricing: item not found")
	// ErrMalformedRecord indicates the store returned a record that cannot be priced.
	ErrMalformedRecord = errors.New("pricing: malformed price record")
)

// StoreError wraps a catalog failure. It is distinct from an unknown item, which prices at zero.
type StoreError struct {
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pricing: catalog lookup for %q failed: %v", e.Code, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InputError rejects a line before any catalog lookup happens.
type InputError struct {
	Field  string
	Code   string
	Reason string
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pricing: invalid %s: %s", e.Field, e.Reason)
}

// IsStoreError reports whether err carries a *StoreError.
func IsStoreError(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}

// IsInputError reports whether err carries an *InputError.
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}
