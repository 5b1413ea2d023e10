// Package calendar supplies the trading days a backtest iterates over.
package calendar

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
)

// Calendar yields trading days in ascending order. Implementations must be
// safe for concurrent use.
type Calendar interface {
	// TradingDays returns the trading dates within [start, end], ascending.
	// Unset bounds are open.
	TradingDays(ctx context.Context, start, end optional.Option[time.Time]) ([]time.Time, error)
}

// StoreCalendar derives trading days from the quote store itself: a day
// trades if the store has quotes for it. This mirrors how the historical
// database is queried for distinct trade dates and guarantees the runner
// never schedules a day the store cannot serve.
type StoreCalendar struct {
	store      quotestore.QuoteStore
	underlying string
}

// NewStoreCalendar creates a StoreCalendar for the given underlying.
func NewStoreCalendar(store quotestore.QuoteStore, underlying string) *StoreCalendar {
	return &StoreCalendar{
		store:      store,
		underlying: underlying,
	}
}

// TradingDays implements Calendar.
func (c *StoreCalendar) TradingDays(ctx context.Context, start, end optional.Option[time.Time]) ([]time.Time, error) {
	return c.store.TradeDates(ctx, c.underlying, start, end)
}

// StaticCalendar serves a fixed, pre-sorted list of dates. Used by tests and
// by callers that bring their own exchange calendar.
type StaticCalendar struct {
	dates []time.Time
}

// NewStaticCalendar creates a StaticCalendar from the given dates. Dates are
// normalized to midnight UTC and sorted.
func NewStaticCalendar(dates []time.Time) *StaticCalendar {
	normalized := make([]time.Time, len(dates))
	for i, d := range dates {
		normalized[i] = types.Midnight(d)
	}

	for i := 1; i < len(normalized); i++ {
		for j := i; j > 0 && normalized[j].Before(normalized[j-1]); j-- {
			normalized[j], normalized[j-1] = normalized[j-1], normalized[j]
		}
	}

	return &StaticCalendar{dates: normalized}
}

// NewWeekdayCalendar creates a StaticCalendar holding every weekday between
// start and end inclusive. Exchange holidays are not modeled; days absent
// from the quote store are skipped by the runner anyway.
func NewWeekdayCalendar(start, end time.Time) *StaticCalendar {
	var dates []time.Time

	for d := types.Midnight(start); !d.After(types.Midnight(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}

		dates = append(dates, d)
	}

	return &StaticCalendar{dates: dates}
}

// TradingDays implements Calendar.
func (c *StaticCalendar) TradingDays(_ context.Context, start, end optional.Option[time.Time]) ([]time.Time, error) {
	var out []time.Time

	for _, d := range c.dates {
		if start.IsSome() && d.Before(types.Midnight(start.Unwrap())) {
			continue
		}

		if end.IsSome() && d.After(types.Midnight(end.Unwrap())) {
			continue
		}

		out = append(out, d)
	}

	return out, nil
}
