package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
)

const fixtureTicker = "SPXW"

// fixtureDay is a Thursday.
func fixtureDay() time.Time {
	return time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func chainQuote(day, ts time.Time, optType types.OptionType, strike, bid, ask, delta, underlying float64) types.Quote {
	return types.Quote{
		Underlying:      fixtureTicker,
		Date:            day,
		Timestamp:       ts,
		Type:            optType,
		Strike:          strike,
		Bid:             bid,
		Ask:             ask,
		Delta:           optional.Some(delta),
		UnderlyingPrice: underlying,
	}
}

// fixtureQuotes builds one trading day of a condor-friendly chain:
//
//   - a full entry snapshot at 09:58 with the underlying at 5003.50, where
//     the delta policy picks the 4960 put and 5040 call and the nearest
//     policy picks the 5000 put and 5020 call;
//   - leg quotes at 11:00, 12:00, 12:55 and 13:00 for the delta-policy
//     condor (4940/4960 puts, 5040/5060 calls), decaying so the entry
//     credit of 3.20 yields a P&L of 0.20 at 11:00, 0.60 at 12:00, 1.80
//     at 12:55 and 2.20 at 13:00.
func fixtureQuotes(day time.Time) []types.Quote {
	entry := at(day, 9, 58)
	underlying := 5003.5

	quotes := []types.Quote{
		// Stray earlier tick; the constructor must prefer 09:58.
		chainQuote(day, at(day, 9, 56), types.OptionTypePut, 4960, 4.0, 4.4, -0.18, underlying),

		chainQuote(day, entry, types.OptionTypePut, 4940, 3.0, 3.4, -0.08, underlying),
		chainQuote(day, entry, types.OptionTypePut, 4960, 5.0, 5.4, -0.18, underlying),
		chainQuote(day, entry, types.OptionTypePut, 4980, 8.0, 8.4, -0.35, underlying),
		chainQuote(day, entry, types.OptionTypePut, 5000, 12.0, 12.6, -0.50, underlying),
		chainQuote(day, entry, types.OptionTypeCall, 5000, 13.0, 13.6, 0.52, underlying),
		chainQuote(day, entry, types.OptionTypeCall, 5020, 8.0, 8.4, 0.35, underlying),
		chainQuote(day, entry, types.OptionTypeCall, 5040, 5.0, 5.4, 0.18, underlying),
		chainQuote(day, entry, types.OptionTypeCall, 5060, 3.0, 3.4, 0.08, underlying),
	}

	exits := []struct {
		ts                           time.Time
		spAsk, lpBid, scAsk, lcBid   float64
		spBid, lpAsk, scBid, lcAsk   float64
	}{
		{at(day, 11, 0), 2.0, 0.5, 2.0, 0.5, 1.9, 0.6, 1.9, 0.6},
		{at(day, 12, 0), 1.5, 0.2, 1.5, 0.2, 1.4, 0.3, 1.4, 0.3},
		{at(day, 12, 55), 1.1, 0.4, 1.1, 0.4, 1.0, 0.5, 1.0, 0.5},
		{at(day, 13, 0), 1.0, 0.5, 1.0, 0.5, 0.9, 0.6, 0.9, 0.6},
	}

	for _, e := range exits {
		quotes = append(quotes,
			chainQuote(day, e.ts, types.OptionTypePut, 4960, e.spBid, e.spAsk, -0.12, underlying),
			chainQuote(day, e.ts, types.OptionTypePut, 4940, e.lpBid, e.lpAsk, -0.05, underlying),
			chainQuote(day, e.ts, types.OptionTypeCall, 5040, e.scBid, e.scAsk, 0.12, underlying),
			chainQuote(day, e.ts, types.OptionTypeCall, 5060, e.lcBid, e.lcAsk, 0.05, underlying),
		)
	}

	return quotes
}

func fixtureStore(quotes []types.Quote) *quotestore.MemoryStore {
	store := quotestore.NewMemoryStore()
	store.Load(quotes)

	return store
}

// dropTimestamps filters out every quote at the given timestamps.
func dropTimestamps(quotes []types.Quote, timestamps ...time.Time) []types.Quote {
	var kept []types.Quote

outer:
	for _, q := range quotes {
		for _, ts := range timestamps {
			if q.Timestamp.Equal(ts) {
				continue outer
			}
		}

		kept = append(kept, q)
	}

	return kept
}

// dropStrike filters out every quote at the given type and strike.
func dropStrike(quotes []types.Quote, optType types.OptionType, strike float64) []types.Quote {
	var kept []types.Quote

	for _, q := range quotes {
		if q.Type == optType && q.Strike == strike {
			continue
		}

		kept = append(kept, q)
	}

	return kept
}

// fixtureConfig is the delta-policy condor the fixture chain is built for.
func fixtureConfig() StrategyConfig {
	cfg := DefaultConfig()
	cfg.Ticker = fixtureTicker
	cfg.WingWidth = 20
	cfg.EntryTimes = []types.TimeOfDay{{Hour: 10, Minute: 0}}
	cfg.ExitTime = optional.Some(types.TimeOfDay{Hour: 13, Minute: 0})
	cfg.StrikeSelection = StrikePolicyDelta
	cfg.DeltaThreshold = 0.20
	cfg.ProfitTarget = optional.None[float64]()

	return cfg
}
