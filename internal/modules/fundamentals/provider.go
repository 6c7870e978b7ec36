package fundamentals

import (
	"context"
	"errors"
)

// ErrNotAvailable is returned by providers when a symbol has no usable data.
// The fetcher counts these as skips rather than failures.
var ErrNotAvailable = errors.New("fundamentals not available")

// Provider supplies per-symbol financial data. Implementations own their
// caching, TTL, and rate limiting; the engine never blocks on network inside
// scoring.
type Provider interface {
	// Lookup returns the point-in-time record for a symbol, or
	// ErrNotAvailable when the provider has nothing usable.
	Lookup(ctx context.Context, symbol string) (*Record, error)

	// Statements returns multi-year annual financials, newest year first.
	// A symbol with a usable record may still have no statement history.
	Statements(ctx context.Context, symbol string) (*Statements, error)
}
