package engine

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

type EvaluatorTestSuite struct {
	suite.Suite
	ctx context.Context
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorTestSuite))
}

func (s *EvaluatorTestSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *EvaluatorTestSuite) open(store *quotestore.MemoryStore, cfg StrategyConfig) *types.Position {
	position, err := BuildPosition(s.ctx, store, fixtureDay(), cfg.EntryTimes[0], cfg)
	require.NoError(s.T(), err)

	return position
}

func (s *EvaluatorTestSuite) TestTimedExitUsesExitTimeQuotes() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), types.ExitTimed, trade.ExitReason)
	assert.Equal(s.T(), at(day, 13, 0), trade.ExitTimestamp)
	// Shorts bought back at the ask, longs sold at the bid.
	assert.InDelta(s.T(), 1.0, trade.ExitDebit, 1e-9)
	assert.InDelta(s.T(), 2.2, trade.RealizedPnL, 1e-9)
	assert.InDelta(s.T(), 2.2/3.2, trade.PnLPct, 1e-9)
	assert.InDelta(s.T(), 16.8, trade.MaxLoss, 1e-9)
	assert.Equal(s.T(), types.OutcomeWin, trade.Outcome)
	assert.Equal(s.T(), time.Thursday, trade.Weekday)
}

func (s *EvaluatorTestSuite) TestTimedExitWalksBackWhenExitQuotesMissing() {
	day := fixtureDay()
	store := fixtureStore(dropTimestamps(fixtureQuotes(day), at(day, 13, 0)))
	cfg := fixtureConfig()

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), types.ExitTimed, trade.ExitReason)
	assert.Equal(s.T(), at(day, 12, 55), trade.ExitTimestamp)
	assert.InDelta(s.T(), 1.4, trade.ExitDebit, 1e-9)
	assert.InDelta(s.T(), 1.8, trade.RealizedPnL, 1e-9)
}

func (s *EvaluatorTestSuite) TestQuoteExitDebitIsCappedAtTheWing() {
	day := fixtureDay()
	quotes := dropTimestamps(fixtureQuotes(day), at(day, 13, 0))

	// Deep breach with wide markets: the quoted cost of closing the put
	// spread runs past the 20-point wing.
	breached := 4931.0
	quotes = append(quotes,
		chainQuote(day, at(day, 13, 0), types.OptionTypePut, 4960, 29.5, 30.5, -0.95, breached),
		chainQuote(day, at(day, 13, 0), types.OptionTypePut, 4940, 9.0, 9.5, -0.70, breached),
		chainQuote(day, at(day, 13, 0), types.OptionTypeCall, 5040, 0.05, 0.10, 0.01, breached),
		chainQuote(day, at(day, 13, 0), types.OptionTypeCall, 5060, 0.05, 0.10, 0.01, breached),
	)

	store := fixtureStore(quotes)
	cfg := fixtureConfig()

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	// Quoted close cost is 21.55; the debit is capped at the wing width and
	// the loss never exceeds the structural max loss.
	assert.Equal(s.T(), types.ExitTimed, trade.ExitReason)
	assert.Equal(s.T(), at(day, 13, 0), trade.ExitTimestamp)
	assert.InDelta(s.T(), 20.0, trade.ExitDebit, 1e-9)
	assert.InDelta(s.T(), -16.8, trade.RealizedPnL, 1e-9)
	assert.InDelta(s.T(), 16.8, trade.MaxLoss, 1e-9)
	assert.Equal(s.T(), types.OutcomeLoss, trade.Outcome)
}

func (s *EvaluatorTestSuite) TestProfitTargetClosesAtFirstQualifyingTimestamp() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()
	cfg.ProfitTarget = optional.Some(0.10)

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	// 11:00 sits below the 0.32 requirement; 12:00 is the first to clear it.
	assert.Equal(s.T(), types.ExitProfitTarget, trade.ExitReason)
	assert.Equal(s.T(), at(day, 12, 0), trade.ExitTimestamp)
	assert.InDelta(s.T(), 2.6, trade.ExitDebit, 1e-9)
	assert.InDelta(s.T(), 0.6, trade.RealizedPnL, 1e-9)
}

func (s *EvaluatorTestSuite) TestExpirationSettlesIntrinsically() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	store.SetSettlement(fixtureTicker, day, 5010)

	cfg := fixtureConfig()
	cfg.ExitTime = optional.None[types.TimeOfDay]()

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	// All four legs expire worthless; the full credit is kept.
	assert.Equal(s.T(), types.ExitExpiration, trade.ExitReason)
	assert.Equal(s.T(), at(day, 16, 0), trade.ExitTimestamp)
	assert.InDelta(s.T(), 0.0, trade.ExitDebit, 1e-9)
	assert.InDelta(s.T(), 3.2, trade.RealizedPnL, 1e-9)
	assert.Equal(s.T(), types.OutcomeWin, trade.Outcome)
}

func (s *EvaluatorTestSuite) TestExpirationBreachIsCappedByTheWing() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	store.SetSettlement(fixtureTicker, day, 4900)

	cfg := fixtureConfig()
	cfg.ExitTime = optional.None[types.TimeOfDay]()

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	// Settlement far through the put wing: debit equals the wing width and
	// the loss equals the structural max loss.
	assert.InDelta(s.T(), 20.0, trade.ExitDebit, 1e-9)
	assert.InDelta(s.T(), -16.8, trade.RealizedPnL, 1e-9)
	assert.Equal(s.T(), types.OutcomeLoss, trade.Outcome)
}

func (s *EvaluatorTestSuite) TestSettlementFallbackWhenNoCompleteExitTimestamp() {
	day := fixtureDay()
	quotes := dropTimestamps(fixtureQuotes(day),
		at(day, 11, 0), at(day, 12, 0), at(day, 12, 55), at(day, 13, 0))
	store := fixtureStore(quotes)
	store.SetSettlement(fixtureTicker, day, 5010)

	cfg := fixtureConfig()

	trade, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), types.ExitSettlementFallback, trade.ExitReason)
	assert.Equal(s.T(), at(day, 13, 0), trade.ExitTimestamp)
	assert.InDelta(s.T(), 3.2, trade.RealizedPnL, 1e-9)
}

func (s *EvaluatorTestSuite) TestSkipWhenFallbackHasNoSettlement() {
	day := fixtureDay()
	quotes := dropTimestamps(fixtureQuotes(day),
		at(day, 11, 0), at(day, 12, 0), at(day, 12, 55), at(day, 13, 0))
	store := fixtureStore(quotes)

	cfg := fixtureConfig()

	_, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	skip, ok := errors.AsSkip(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), errors.SkipNoExitData, skip.Reason)
}

func (s *EvaluatorTestSuite) TestSkipWhenExpirationHasNoSettlement() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))

	cfg := fixtureConfig()
	cfg.ExitTime = optional.None[types.TimeOfDay]()

	_, err := EvaluatePosition(s.ctx, store, s.open(store, cfg), cfg)
	skip, ok := errors.AsSkip(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), errors.SkipNoSettlement, skip.Reason)
}
