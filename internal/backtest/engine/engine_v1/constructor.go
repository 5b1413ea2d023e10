package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

// BuildPosition opens an iron condor for the given day and entry time: it
// takes the latest quote snapshot within the entry window, places the short
// strikes per the configured policy, buys the wings one wing width further
// out, and prices the entry conservatively (shorts sold at bid, longs bought
// at ask). A *errors.SkipError return means the pair has incomplete data and
// produced no position; any other error is a store failure.
func BuildPosition(ctx context.Context, store quotestore.QuoteStore, day time.Time, entryTime types.TimeOfDay, cfg StrategyConfig) (*types.Position, error) {
	day = types.Midnight(day)

	from := entryTime.Add(-cfg.EntryWindowMinutes)

	timestamps, err := store.ListTimestamps(ctx, cfg.Ticker, day, from, entryTime)
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, errors.NewSkipf(day, entryTime.String(), errors.SkipNoEntrySnapshot,
			"no quotes within %d minutes before %s", cfg.EntryWindowMinutes, entryTime)
	}

	entryTimestamp := timestamps[len(timestamps)-1]

	snapshot, err := store.Snapshot(ctx, cfg.Ticker, day, entryTimestamp)
	if err != nil {
		return nil, err
	}

	if len(snapshot) == 0 {
		return nil, errors.NewSkip(day, entryTime.String(), errors.SkipNoEntrySnapshot,
			"empty snapshot at entry timestamp")
	}

	underlyingPrice := referencePrice(snapshot)

	shortPut, shortCall, err := selectShortQuotes(snapshot, underlyingPrice, cfg, day, entryTime)
	if err != nil {
		return nil, err
	}

	longPut, err := wingQuote(ctx, store, cfg, day, entryTimestamp, entryTime,
		types.OptionTypePut, shortPut.Strike-cfg.WingWidth)
	if err != nil {
		return nil, err
	}

	longCall, err := wingQuote(ctx, store, cfg, day, entryTimestamp, entryTime,
		types.OptionTypeCall, shortCall.Strike+cfg.WingWidth)
	if err != nil {
		return nil, err
	}

	position := &types.Position{
		Underlying:      cfg.Ticker,
		Date:            day,
		EntryTime:       entryTime,
		EntryTimestamp:  entryTimestamp,
		UnderlyingPrice: underlyingPrice,
		ShortPut:        newLeg(shortPut, types.SideShort),
		LongPut:         newLeg(longPut, types.SideLong),
		ShortCall:       newLeg(shortCall, types.SideShort),
		LongCall:        newLeg(longCall, types.SideLong),
	}
	position.NetCredit = entryCredit(position)

	if position.NetCredit <= 0 {
		return nil, errors.NewSkipf(day, entryTime.String(), errors.SkipNonPositiveCredit,
			"net credit %.2f at strikes %g/%g/%g/%g", position.NetCredit,
			longPut.Strike, shortPut.Strike, shortCall.Strike, longCall.Strike)
	}

	return position, nil
}

// referencePrice extracts the underlying price from a snapshot. Every row
// carries the same recording; the first positive one wins. Snapshots with no
// underlying mark fall back to the midpoint of the listed strike range.
func referencePrice(snapshot []types.Quote) float64 {
	for _, quote := range snapshot {
		if quote.UnderlyingPrice > 0 {
			return quote.UnderlyingPrice
		}
	}

	lo, hi := snapshot[0].Strike, snapshot[0].Strike
	for _, quote := range snapshot[1:] {
		if quote.Strike < lo {
			lo = quote.Strike
		}

		if quote.Strike > hi {
			hi = quote.Strike
		}
	}

	return (lo + hi) / 2
}

// selectShortQuotes places the short put and short call per the configured
// strike policy.
func selectShortQuotes(snapshot []types.Quote, underlyingPrice float64, cfg StrategyConfig, day time.Time, entryTime types.TimeOfDay) (put types.Quote, call types.Quote, err error) {
	var putFound, callFound bool

	switch cfg.StrikeSelection {
	case StrikePolicyDelta:
		// Short the furthest strikes still inside the delta threshold: the
		// call with the highest delta below it and the put with the lowest
		// delta above its negation. Quotes without greeks are ignored.
		for _, quote := range snapshot {
			delta, ok := quote.Delta.Take()
			if ok != nil {
				continue
			}

			switch quote.Type {
			case types.OptionTypeCall:
				if delta > 0 && delta < cfg.DeltaThreshold && (!callFound || delta > mustDelta(call)) {
					call, callFound = quote, true
				}
			case types.OptionTypePut:
				if delta < 0 && delta > -cfg.DeltaThreshold && (!putFound || delta < mustDelta(put)) {
					put, putFound = quote, true
				}
			}
		}
	default:
		// Nearest policy: the closest put at or below the underlying price
		// and the closest call at or above it.
		for _, quote := range snapshot {
			switch quote.Type {
			case types.OptionTypeCall:
				if quote.Strike >= underlyingPrice && (!callFound || quote.Strike < call.Strike) {
					call, callFound = quote, true
				}
			case types.OptionTypePut:
				if quote.Strike <= underlyingPrice && (!putFound || quote.Strike > put.Strike) {
					put, putFound = quote, true
				}
			}
		}
	}

	if !putFound || !callFound {
		return types.Quote{}, types.Quote{}, errors.NewSkipf(day, entryTime.String(), errors.SkipNoShortStrike,
			"policy %s found no short strike pair around %.2f", cfg.StrikeSelection, underlyingPrice)
	}

	return put, call, nil
}

func mustDelta(q types.Quote) float64 {
	return q.Delta.TakeOr(0)
}

// wingQuote fetches the protective long leg: the nearest listed strike at or
// beyond the wing target -- at or below it for puts, at or above it for
// calls. No qualifying strike in the chain skips the pair.
func wingQuote(ctx context.Context, store quotestore.QuoteStore, cfg StrategyConfig, day time.Time, ts time.Time, entryTime types.TimeOfDay, optType types.OptionType, target float64) (types.Quote, error) {
	strikes, err := store.ListStrikes(ctx, cfg.Ticker, day, ts, optType)
	if err != nil {
		return types.Quote{}, err
	}

	strike, found := 0.0, false

	for _, candidate := range strikes {
		switch optType {
		case types.OptionTypePut:
			if candidate <= target && (!found || candidate > strike) {
				strike, found = candidate, true
			}
		case types.OptionTypeCall:
			if candidate >= target && (!found || candidate < strike) {
				strike, found = candidate, true
			}
		}
	}

	if !found {
		return types.Quote{}, errors.NewSkipf(day, entryTime.String(), errors.SkipMissingWingStrike,
			"no %s strike at or beyond wing target %g", optType, target)
	}

	quote, err := store.GetQuote(ctx, cfg.Ticker, day, ts, optType, strike)
	if err != nil {
		return types.Quote{}, err
	}

	wing, takeErr := quote.Take()
	if takeErr != nil {
		return types.Quote{}, errors.NewSkipf(day, entryTime.String(), errors.SkipMissingLegQuote,
			"no %s quote at wing strike %g", optType, strike)
	}

	return wing, nil
}

// newLeg opens a leg at its conservative entry price: shorts are sold at the
// bid, longs are bought at the ask.
func newLeg(quote types.Quote, side types.OptionSide) types.CondorLeg {
	leg := types.CondorLeg{
		Type:   quote.Type,
		Strike: quote.Strike,
		Side:   side,
	}

	if side == types.SideShort {
		leg.EntryPrice = quote.Bid
	} else {
		leg.EntryPrice = quote.Ask
	}

	return leg
}

// entryCredit totals the premium collected at entry. Leg prices are quoted
// in cents-denominated decimals; summing through decimal keeps the credit
// exact before it is compared against zero.
func entryCredit(p *types.Position) float64 {
	credit := decimal.NewFromFloat(p.ShortPut.EntryPrice).
		Add(decimal.NewFromFloat(p.ShortCall.EntryPrice)).
		Sub(decimal.NewFromFloat(p.LongPut.EntryPrice)).
		Sub(decimal.NewFromFloat(p.LongCall.EntryPrice))

	result, _ := credit.Float64()

	return result
}
