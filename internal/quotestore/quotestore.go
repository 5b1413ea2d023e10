// Package quotestore provides read-only access to historical option quotes
// indexed by trading day, timestamp, option type, and strike.
package quotestore

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/types"
)

// QuoteStore is the engine's only data dependency. Implementations must be
// safe for concurrent readers; the engine never writes through it.
type QuoteStore interface {
	// GetQuote returns the quote for the exact (date, timestamp, type, strike)
	// key, or None when no such quote exists.
	GetQuote(ctx context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType, strike float64) (optional.Option[types.Quote], error)
	// ListStrikes returns the ascending strikes with a live quote at ts.
	ListStrikes(ctx context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType) ([]float64, error)
	// Snapshot returns every quote (both option types) at ts on the given day.
	Snapshot(ctx context.Context, underlying string, date time.Time, ts time.Time) ([]types.Quote, error)
	// ListTimestamps returns the distinct quote timestamps on the given day
	// within [from, to], ascending.
	ListTimestamps(ctx context.Context, underlying string, date time.Time, from, to types.TimeOfDay) ([]time.Time, error)
	// GetSettlementPrice returns the underlying's settlement price for the
	// day, or None when unavailable.
	GetSettlementPrice(ctx context.Context, underlying string, date time.Time) (optional.Option[float64], error)
	// TradeDates returns the distinct trading dates with quotes for the
	// underlying, ascending, optionally bounded.
	TradeDates(ctx context.Context, underlying string, start, end optional.Option[time.Time]) ([]time.Time, error)
	// Close releases any resources held by the store.
	Close() error
}
