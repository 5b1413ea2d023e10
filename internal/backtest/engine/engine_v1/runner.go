package engine

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/backtest/engine"
	"github.com/zerodte-lab/condor-backtest/internal/calendar"
	"github.com/zerodte-lab/condor-backtest/internal/logger"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// combo is one (trading day, entry time) pair of the sweep.
type combo struct {
	date  time.Time
	entry types.TimeOfDay
}

// comboResult is the outcome slot for one combo. Exactly one of trade and
// skip is set when the sweep succeeds.
type comboResult struct {
	trade *types.TradeRecord
	skip  *errors.SkipError
}

// runSweep executes the full sweep: every trading day in [start, end] not
// excluded by the config, crossed with every configured entry time, in
// ascending (date, entry time) order. Combos run concurrently but results
// land in preassigned slots so the output order never depends on
// scheduling. A store error aborts the whole sweep with no partial results.
func runSweep(ctx context.Context, store quotestore.QuoteStore, cal calendar.Calendar, cfg StrategyConfig, start, end optional.Option[time.Time], concurrency int, log *logger.Logger, onProgress engine.OnProgress) ([]types.TradeRecord, []errors.SkipError, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	days, err := cal.TradingDays(ctx, start, end)
	if err != nil {
		return nil, nil, err
	}

	entryTimes := make([]types.TimeOfDay, len(cfg.EntryTimes))
	copy(entryTimes, cfg.EntryTimes)
	sort.Slice(entryTimes, func(i, j int) bool {
		return entryTimes[i].Before(entryTimes[j])
	})

	var combos []combo

	for _, day := range days {
		if cfg.IsExcluded(day) {
			continue
		}

		for _, entry := range entryTimes {
			combos = append(combos, combo{date: types.Midnight(day), entry: entry})
		}
	}

	log.Info("starting sweep",
		zap.String("ticker", cfg.Ticker),
		zap.Int("trading_days", len(days)),
		zap.Int("combinations", len(combos)),
	)

	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	results := make([]comboResult, len(combos))

	var done atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, c := range combos {
		group.Go(func() error {
			result, err := runCombo(groupCtx, store, c, cfg)
			if err != nil {
				return err
			}

			results[i] = result

			if onProgress != nil {
				onProgress(int(done.Add(1)), len(combos))
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	trades := make([]types.TradeRecord, 0, len(combos))

	var skips []errors.SkipError

	for _, result := range results {
		switch {
		case result.trade != nil:
			trades = append(trades, *result.trade)
		case result.skip != nil:
			skips = append(skips, *result.skip)
			log.Debug("combination skipped",
				zap.Time("date", result.skip.Date),
				zap.String("entry_time", result.skip.EntryTime),
				zap.String("reason", string(result.skip.Reason)),
			)
		}
	}

	log.Info("sweep finished",
		zap.Int("trades", len(trades)),
		zap.Int("skipped", len(skips)),
	)

	return trades, skips, nil
}

// runCombo opens and closes the condor for a single combo. Skips are folded
// into the result; every other error aborts the sweep.
func runCombo(ctx context.Context, store quotestore.QuoteStore, c combo, cfg StrategyConfig) (comboResult, error) {
	if err := ctx.Err(); err != nil {
		return comboResult{}, err
	}

	position, err := BuildPosition(ctx, store, c.date, c.entry, cfg)
	if err != nil {
		if skip, ok := errors.AsSkip(err); ok {
			return comboResult{skip: skip}, nil
		}

		return comboResult{}, err
	}

	trade, err := EvaluatePosition(ctx, store, position, cfg)
	if err != nil {
		if skip, ok := errors.AsSkip(err); ok {
			return comboResult{skip: skip}, nil
		}

		return comboResult{}, err
	}

	return comboResult{trade: trade}, nil
}
