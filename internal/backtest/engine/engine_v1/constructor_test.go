package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

type ConstructorTestSuite struct {
	suite.Suite
	ctx context.Context
}

func TestConstructorSuite(t *testing.T) {
	suite.Run(t, new(ConstructorTestSuite))
}

func (s *ConstructorTestSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *ConstructorTestSuite) TestDeltaPolicyBuildsCondor() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()

	position, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), at(day, 9, 58), position.EntryTimestamp)
	assert.Equal(s.T(), 5003.5, position.UnderlyingPrice)

	assert.Equal(s.T(), 4960.0, position.ShortPut.Strike)
	assert.Equal(s.T(), 4940.0, position.LongPut.Strike)
	assert.Equal(s.T(), 5040.0, position.ShortCall.Strike)
	assert.Equal(s.T(), 5060.0, position.LongCall.Strike)

	// Shorts sold at the bid, longs bought at the ask.
	assert.Equal(s.T(), 5.0, position.ShortPut.EntryPrice)
	assert.Equal(s.T(), 3.4, position.LongPut.EntryPrice)
	assert.Equal(s.T(), 5.0, position.ShortCall.EntryPrice)
	assert.Equal(s.T(), 3.4, position.LongCall.EntryPrice)

	assert.InDelta(s.T(), 3.2, position.NetCredit, 1e-9)
	assert.Equal(s.T(), 20.0, position.PutWing())
	assert.Equal(s.T(), 20.0, position.CallWing())
}

func (s *ConstructorTestSuite) TestNearestPolicyStraddlesUnderlying() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()
	cfg.StrikeSelection = StrikePolicyNearest

	position, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 5000.0, position.ShortPut.Strike)
	assert.Equal(s.T(), 4980.0, position.LongPut.Strike)
	assert.Equal(s.T(), 5020.0, position.ShortCall.Strike)
	assert.Equal(s.T(), 5040.0, position.LongCall.Strike)
	assert.InDelta(s.T(), 6.2, position.NetCredit, 1e-9)
}

func (s *ConstructorTestSuite) TestWingSnapsToNearestListedStrike() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()
	// No strikes at exactly 15 points out; the wing widens to the 20-point
	// grid.
	cfg.WingWidth = 15

	position, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 4940.0, position.LongPut.Strike)
	assert.Equal(s.T(), 5060.0, position.LongCall.Strike)
	assert.Equal(s.T(), 20.0, position.PutWing())
	assert.Equal(s.T(), 20.0, position.CallWing())
}

func (s *ConstructorTestSuite) TestMissingUnderlyingPriceFallsBackToStrikeMidpoint() {
	day := fixtureDay()
	quotes := fixtureQuotes(day)
	for i := range quotes {
		quotes[i].UnderlyingPrice = 0
	}

	store := fixtureStore(quotes)
	cfg := fixtureConfig()
	cfg.StrikeSelection = StrikePolicyNearest

	position, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	require.NoError(s.T(), err)

	// Strike range 4940-5060 midpoint is 5000; both shorts land there.
	assert.Equal(s.T(), 5000.0, position.UnderlyingPrice)
	assert.Equal(s.T(), 5000.0, position.ShortPut.Strike)
	assert.Equal(s.T(), 5000.0, position.ShortCall.Strike)
}

func (s *ConstructorTestSuite) TestSkipWhenNoSnapshotInWindow() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()
	cfg.EntryTimes = []types.TimeOfDay{{Hour: 10, Minute: 30}}

	_, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	skip, ok := errors.AsSkip(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), errors.SkipNoEntrySnapshot, skip.Reason)
	assert.Equal(s.T(), "10:30", skip.EntryTime)
}

func (s *ConstructorTestSuite) TestSkipWhenWingStrikeMissing() {
	day := fixtureDay()
	store := fixtureStore(dropStrike(fixtureQuotes(day), types.OptionTypePut, 4940))
	cfg := fixtureConfig()

	_, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	skip, ok := errors.AsSkip(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), errors.SkipMissingWingStrike, skip.Reason)
}

func (s *ConstructorTestSuite) TestSkipWhenNoStrikeInsideThreshold() {
	day := fixtureDay()
	store := fixtureStore(fixtureQuotes(day))
	cfg := fixtureConfig()
	cfg.DeltaThreshold = 0.01

	_, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	skip, ok := errors.AsSkip(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), errors.SkipNoShortStrike, skip.Reason)
}

func (s *ConstructorTestSuite) TestSkipWhenCreditNotPositive() {
	day := fixtureDay()
	quotes := fixtureQuotes(day)

	// Price the wings above the shorts so the structure pays no credit.
	for i, q := range quotes {
		if !q.Timestamp.Equal(at(day, 9, 58)) {
			continue
		}

		if (q.Type == types.OptionTypePut && q.Strike == 4940) ||
			(q.Type == types.OptionTypeCall && q.Strike == 5060) {
			quotes[i].Ask = 5.2
		}
	}

	store := fixtureStore(quotes)
	cfg := fixtureConfig()

	_, err := BuildPosition(s.ctx, store, day, cfg.EntryTimes[0], cfg)
	skip, ok := errors.AsSkip(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), errors.SkipNonPositiveCredit, skip.Reason)
}
