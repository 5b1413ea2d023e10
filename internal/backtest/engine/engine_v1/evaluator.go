package engine

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

// EvaluatePosition closes an open condor and produces its trade record.
//
// With an exit time configured the position is closed at the latest
// timestamp at or before it where all four legs still quote; when a profit
// target is set, every complete timestamp between entry and exit is checked
// first and the earliest one reaching the target closes the trade. When no
// complete timestamp exists, the position settles against the day's
// settlement price. Without an exit time the position is held to expiration
// and settles intrinsically.
//
// Exit pricing is conservative throughout: shorts are bought back at the
// ask, longs are sold at the bid.
func EvaluatePosition(ctx context.Context, store quotestore.QuoteStore, position *types.Position, cfg StrategyConfig) (*types.TradeRecord, error) {
	exitTime, hasExit := position.EntryTime, false
	if t, err := cfg.ExitTime.Take(); err == nil {
		exitTime, hasExit = t, true
	}

	if !hasExit {
		return settle(ctx, store, position, cfg, types.ExitExpiration, types.SessionClose.At(position.Date))
	}

	timestamps, err := store.ListTimestamps(ctx, cfg.Ticker, position.Date, position.EntryTime, exitTime)
	if err != nil {
		return nil, err
	}

	if target, targetErr := cfg.ProfitTarget.Take(); targetErr == nil {
		required := target * position.NetCredit

		for _, ts := range timestamps {
			if !ts.After(position.EntryTimestamp) {
				continue
			}

			debit, legPrices, ok, err := exitDebitAt(ctx, store, position, cfg, ts)
			if err != nil {
				return nil, err
			}

			if ok && position.NetCredit-debit >= required {
				return finalize(position, types.ExitProfitTarget, ts, debit, legPrices), nil
			}
		}
	}

	// Timed exit: walk back from the exit time to the last timestamp where
	// all four legs still quote.
	for i := len(timestamps) - 1; i >= 0; i-- {
		debit, legPrices, ok, err := exitDebitAt(ctx, store, position, cfg, timestamps[i])
		if err != nil {
			return nil, err
		}

		if ok {
			return finalize(position, types.ExitTimed, timestamps[i], debit, legPrices), nil
		}
	}

	return settle(ctx, store, position, cfg, types.ExitSettlementFallback, exitTime.At(position.Date))
}

// legExitPrices holds per-leg closing prices in canonical leg order:
// short put, long put, short call, long call.
type legExitPrices [4]float64

// exitDebitAt prices closing all four legs at ts. ok is false when any leg
// has no quote at that timestamp.
func exitDebitAt(ctx context.Context, store quotestore.QuoteStore, position *types.Position, cfg StrategyConfig, ts time.Time) (debit float64, prices legExitPrices, ok bool, err error) {
	total := decimal.Zero

	for i, leg := range position.Legs() {
		quoted, err := store.GetQuote(ctx, cfg.Ticker, position.Date, ts, leg.Type, leg.Strike)
		if err != nil {
			return 0, prices, false, err
		}

		quote, takeErr := quoted.Take()
		if takeErr != nil {
			return 0, prices, false, nil
		}

		if leg.Side == types.SideShort {
			prices[i] = quote.Ask
			total = total.Add(decimal.NewFromFloat(quote.Ask))
		} else {
			prices[i] = quote.Bid
			total = total.Sub(decimal.NewFromFloat(quote.Bid))
		}
	}

	debit, _ = total.Float64()

	// A defined-risk condor never costs more than its widest wing to close:
	// past that, letting the spread settle is strictly cheaper. Wide markets
	// deep in the money can quote through that bound.
	if bound := maxWing(position); debit > bound {
		debit = bound
	}

	return debit, prices, true, nil
}

func maxWing(p *types.Position) float64 {
	wing := p.PutWing()
	if p.CallWing() > wing {
		wing = p.CallWing()
	}

	return wing
}

// settle closes the position against the day's settlement price. Each leg is
// worth its intrinsic value; spread structure caps the debit at the wing
// width on either side.
func settle(ctx context.Context, store quotestore.QuoteStore, position *types.Position, cfg StrategyConfig, reason types.ExitReason, exitTimestamp time.Time) (*types.TradeRecord, error) {
	settlement, err := store.GetSettlementPrice(ctx, cfg.Ticker, position.Date)
	if err != nil {
		return nil, err
	}

	price, takeErr := settlement.Take()
	if takeErr != nil {
		skipReason := errors.SkipNoSettlement
		if reason == types.ExitSettlementFallback {
			skipReason = errors.SkipNoExitData
		}

		return nil, errors.NewSkip(position.Date, position.EntryTime.String(), skipReason,
			"no settlement price for the day")
	}

	total := decimal.Zero

	var prices legExitPrices

	for i, leg := range position.Legs() {
		prices[i] = intrinsic(leg, price)

		value := decimal.NewFromFloat(prices[i])
		if leg.Side == types.SideShort {
			total = total.Add(value)
		} else {
			total = total.Sub(value)
		}
	}

	debit, _ := total.Float64()

	return finalize(position, reason, exitTimestamp, debit, prices), nil
}

func intrinsic(leg types.CondorLeg, underlying float64) float64 {
	var value float64

	switch leg.Type {
	case types.OptionTypeCall:
		value = underlying - leg.Strike
	case types.OptionTypePut:
		value = leg.Strike - underlying
	}

	if value < 0 {
		return 0
	}

	return value
}

// finalize stamps the exit on the position's legs and emits the trade record.
func finalize(position *types.Position, reason types.ExitReason, exitTimestamp time.Time, exitDebit float64, prices legExitPrices) *types.TradeRecord {
	position.ShortPut.ExitPrice = optional.Some(prices[0])
	position.LongPut.ExitPrice = optional.Some(prices[1])
	position.ShortCall.ExitPrice = optional.Some(prices[2])
	position.LongCall.ExitPrice = optional.Some(prices[3])

	pnl, _ := decimal.NewFromFloat(position.NetCredit).
		Sub(decimal.NewFromFloat(exitDebit)).
		Float64()

	pnlPct := 0.0
	if position.NetCredit != 0 {
		pnlPct = pnl / position.NetCredit
	}

	// Wings can land beyond the configured width on coarse strike grids, so
	// the structural worst case comes from the actual spread widths.
	wing := maxWing(position)

	return &types.TradeRecord{
		Date:           position.Date,
		Weekday:        position.Date.Weekday(),
		EntryTime:      position.EntryTime,
		EntryTimestamp: position.EntryTimestamp,
		ExitTimestamp:  exitTimestamp,
		ExitReason:     reason,

		ShortPutStrike:  position.ShortPut.Strike,
		LongPutStrike:   position.LongPut.Strike,
		ShortCallStrike: position.ShortCall.Strike,
		LongCallStrike:  position.LongCall.Strike,

		NetCredit:   position.NetCredit,
		ExitDebit:   exitDebit,
		RealizedPnL: pnl,
		PnLPct:      pnlPct,
		MaxLoss:     wing - position.NetCredit,
		Outcome:     types.ClassifyOutcome(pnl),
	}
}
