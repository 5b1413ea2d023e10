package engine

import (
	"context"

	"github.com/zerodte-lab/condor-backtest/internal/calendar"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

// OnProgress is invoked after each (date, entry time) combination completes,
// with the number of combinations finished so far and the total.
type OnProgress func(done, total int)

// RunReport is the full outcome of one engine run: the chronological trade
// log, the derived summary, and the diagnostic skip log for combinations
// that produced no trade.
type RunReport struct {
	Trades []types.TradeRecord
	Stats  types.SummaryStats
	Skips  []errors.SkipError
}

// Engine sweeps an iron condor strategy over a range of trading days and
// entry times. Configure it with Initialize and the setters, then call Run.
type Engine interface {
	// Initialize configures the engine from a YAML strategy config.
	Initialize(config string) error
	// SetQuoteStore sets the option quote source. Required before Run.
	SetQuoteStore(store quotestore.QuoteStore) error
	// SetCalendar sets the trading day source. Required before Run.
	SetCalendar(cal calendar.Calendar) error
	// SetResultsFolder sets the folder the trade log and summary are
	// written to. Optional; when unset Run only returns the report.
	SetResultsFolder(folder string) error
	// SetDateRange restricts the sweep to trading days within [start, end].
	// Dates are "2006-01-02" strings; an empty string leaves the
	// corresponding bound open.
	SetDateRange(start, end string) error
	// SetConcurrency bounds the number of combinations evaluated in
	// parallel. Zero or negative means one worker per CPU.
	SetConcurrency(n int)
	// SetProgressCallback registers a per-combination progress callback.
	SetProgressCallback(onProgress OnProgress)
	// Run validates the configuration, sweeps every eligible
	// (date, entry time) combination, and aggregates the results.
	Run(ctx context.Context) (*RunReport, error)
}
