package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/backtest/engine"
	"github.com/zerodte-lab/condor-backtest/internal/calendar"
	"github.com/zerodte-lab/condor-backtest/internal/logger"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/reporting"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	tradesFileName  = "trades.csv"
	statsFileName   = "stats.yaml"
	summaryFileName = "summary.md"
)

type BacktestEngineV1 struct {
	config        StrategyConfig
	initialized   bool
	store         quotestore.QuoteStore
	cal           calendar.Calendar
	resultsFolder string
	start         optional.Option[time.Time]
	end           optional.Option[time.Time]
	concurrency   int
	log           *logger.Logger
	onProgress    engine.OnProgress
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        DefaultConfig(),
		initialized:   false,
		store:         nil,
		cal:           nil,
		resultsFolder: "",
		start:         optional.None[time.Time](),
		end:           optional.None[time.Time](),
		concurrency:   0,
		log:           logger.NewNopLogger(),
		onProgress:    nil,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse strategy config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}

	b.log = log
	b.initialized = true

	b.log.Debug("engine initialized",
		zap.String("ticker", b.config.Ticker),
		zap.Float64("wing_width", b.config.WingWidth),
		zap.Int("entry_times", len(b.config.EntryTimes)),
	)

	return nil
}

// SetQuoteStore implements engine.Engine.
func (b *BacktestEngineV1) SetQuoteStore(store quotestore.QuoteStore) error {
	if store == nil {
		return errors.New(errors.ErrCodeNoQuoteStore, "quote store is nil")
	}

	b.store = store

	return nil
}

// SetCalendar implements engine.Engine.
func (b *BacktestEngineV1) SetCalendar(cal calendar.Calendar) error {
	if cal == nil {
		return errors.New(errors.ErrCodeNoCalendar, "calendar is nil")
	}

	b.cal = cal

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	if folder == "" {
		return errors.New(errors.ErrCodeNoResultsFolder, "results folder is empty")
	}

	b.resultsFolder = folder

	return nil
}

// SetDateRange implements engine.Engine.
func (b *BacktestEngineV1) SetDateRange(start, end string) error {
	parse := func(s string) (optional.Option[time.Time], error) {
		if s == "" {
			return optional.None[time.Time](), nil
		}

		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return optional.None[time.Time](), errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid date %q", s)
		}

		return optional.Some(types.Midnight(t)), nil
	}

	startOpt, err := parse(start)
	if err != nil {
		return err
	}

	endOpt, err := parse(end)
	if err != nil {
		return err
	}

	if startOpt.IsSome() && endOpt.IsSome() && endOpt.Unwrap().Before(startOpt.Unwrap()) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "end date %s precedes start date %s", end, start)
	}

	b.start = startOpt
	b.end = endOpt

	return nil
}

// SetConcurrency implements engine.Engine.
func (b *BacktestEngineV1) SetConcurrency(n int) {
	b.concurrency = n
}

// SetProgressCallback implements engine.Engine.
func (b *BacktestEngineV1) SetProgressCallback(onProgress engine.OnProgress) {
	b.onProgress = onProgress
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context) (*engine.RunReport, error) {
	if !b.initialized {
		return nil, errors.New(errors.ErrCodeEngineNotReady, "engine is not initialized")
	}

	if b.store == nil {
		return nil, errors.New(errors.ErrCodeNoQuoteStore, "quote store is not set")
	}

	if b.cal == nil {
		return nil, errors.New(errors.ErrCodeNoCalendar, "calendar is not set")
	}

	trades, skips, err := runSweep(ctx, b.store, b.cal, b.config, b.start, b.end, b.concurrency, b.log, b.onProgress)
	if err != nil {
		return nil, err
	}

	stats := Summarize(trades, b.config)
	stats.ID = uuid.New().String()
	stats.GeneratedAt = time.Now().UTC()

	report := &engine.RunReport{
		Trades: trades,
		Stats:  stats,
		Skips:  skips,
	}

	if b.resultsFolder != "" {
		if err := b.writeResults(report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// writeResults persists the trade log, the YAML summary, and the markdown
// report under <resultsFolder>/<run id>/.
func (b *BacktestEngineV1) writeResults(report *engine.RunReport) error {
	runFolder := filepath.Join(b.resultsFolder, report.Stats.ID)
	if err := os.MkdirAll(runFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeReportWriteFailed, "failed to create results folder", err)
	}

	tradesPath := filepath.Join(runFolder, tradesFileName)
	if err := reporting.WriteTradesCSV(tradesPath, report.Trades); err != nil {
		return errors.Wrap(errors.ErrCodeReportWriteFailed, "failed to write trade log", err)
	}

	statsPath := filepath.Join(runFolder, statsFileName)
	if err := types.WriteSummaryStats(statsPath, report.Stats); err != nil {
		return errors.Wrap(errors.ErrCodeReportWriteFailed, "failed to write summary stats", err)
	}

	summaryPath := filepath.Join(runFolder, summaryFileName)
	if err := reporting.WriteMarkdownSummary(summaryPath, report.Stats, report.Skips); err != nil {
		return errors.Wrap(errors.ErrCodeReportWriteFailed, "failed to write markdown summary", err)
	}

	b.log.Info("results written",
		zap.String("folder", runFolder),
		zap.Int("trades", len(report.Trades)),
	)

	return nil
}
