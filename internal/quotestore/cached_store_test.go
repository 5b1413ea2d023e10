package quotestore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/zerodte-lab/condor-backtest/internal/types"
)

// countingStore wraps a QuoteStore and counts calls that reach it.
type countingStore struct {
	QuoteStore

	snapshots   atomic.Int64
	timestamps  atomic.Int64
	settlements atomic.Int64
}

func (c *countingStore) Snapshot(ctx context.Context, underlying string, date time.Time, ts time.Time) ([]types.Quote, error) {
	c.snapshots.Add(1)

	return c.QuoteStore.Snapshot(ctx, underlying, date, ts)
}

func (c *countingStore) ListTimestamps(ctx context.Context, underlying string, date time.Time, from, to types.TimeOfDay) ([]time.Time, error) {
	c.timestamps.Add(1)

	return c.QuoteStore.ListTimestamps(ctx, underlying, date, from, to)
}

func (c *countingStore) GetSettlementPrice(ctx context.Context, underlying string, date time.Time) (optional.Option[float64], error) {
	c.settlements.Add(1)

	return c.QuoteStore.GetSettlementPrice(ctx, underlying, date)
}

type CachedStoreTestSuite struct {
	suite.Suite

	inner  *countingStore
	cached *CachedStore
	day    time.Time
	ctx    context.Context
}

func TestCachedStoreSuite(t *testing.T) {
	suite.Run(t, new(CachedStoreTestSuite))
}

func (suite *CachedStoreTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	memory := NewMemoryStore()
	memory.Load([]types.Quote{
		testQuote(suite.day, 10, 0, types.OptionTypePut, 4000, 2.00, 2.10),
		testQuote(suite.day, 10, 0, types.OptionTypeCall, 4050, 2.00, 2.10),
	})
	memory.SetSettlement("SPXW", suite.day, 4010)

	suite.inner = &countingStore{QuoteStore: memory}
	suite.cached = NewCachedStore(suite.inner, 2)
}

func (suite *CachedStoreTestSuite) TestSnapshotReadThrough() {
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	first, err := suite.cached.Snapshot(suite.ctx, "SPXW", suite.day, ts)
	suite.NoError(err)
	suite.Len(first, 2)
	suite.Equal(int64(1), suite.inner.snapshots.Load())

	second, err := suite.cached.Snapshot(suite.ctx, "SPXW", suite.day, ts)
	suite.NoError(err)
	suite.Equal(first, second)
	suite.Equal(int64(1), suite.inner.snapshots.Load())
}

func (suite *CachedStoreTestSuite) TestGetQuoteServedFromSnapshot() {
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	quote, err := suite.cached.GetQuote(suite.ctx, "SPXW", suite.day, ts, types.OptionTypePut, 4000)
	suite.NoError(err)
	suite.True(quote.IsSome())

	again, err := suite.cached.GetQuote(suite.ctx, "SPXW", suite.day, ts, types.OptionTypeCall, 4050)
	suite.NoError(err)
	suite.True(again.IsSome())

	// both lookups share one underlying snapshot query
	suite.Equal(int64(1), suite.inner.snapshots.Load())
}

func (suite *CachedStoreTestSuite) TestSettlementCachedIncludingAbsence() {
	price, err := suite.cached.GetSettlementPrice(suite.ctx, "SPXW", suite.day)
	suite.NoError(err)
	suite.Equal(4010.0, price.Unwrap())

	_, err = suite.cached.GetSettlementPrice(suite.ctx, "SPXW", suite.day)
	suite.NoError(err)
	suite.Equal(int64(1), suite.inner.settlements.Load())

	// absence is cached too
	other := suite.day.AddDate(0, 0, 1)
	missing, err := suite.cached.GetSettlementPrice(suite.ctx, "SPXW", other)
	suite.NoError(err)
	suite.True(missing.IsNone())

	_, err = suite.cached.GetSettlementPrice(suite.ctx, "SPXW", other)
	suite.NoError(err)
	suite.Equal(int64(2), suite.inner.settlements.Load())
}

func (suite *CachedStoreTestSuite) TestDayEviction() {
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	_, err := suite.cached.Snapshot(suite.ctx, "SPXW", suite.day, ts)
	suite.NoError(err)

	// touch two more days, evicting the first (maxDays = 2)
	for i := 1; i <= 2; i++ {
		day := suite.day.AddDate(0, 0, i)
		_, err := suite.cached.Snapshot(suite.ctx, "SPXW", day, ts.AddDate(0, 0, i))
		suite.NoError(err)
	}

	suite.Equal(2, suite.cached.Len())

	_, err = suite.cached.Snapshot(suite.ctx, "SPXW", suite.day, ts)
	suite.NoError(err)
	suite.Equal(int64(4), suite.inner.snapshots.Load())
}

func (suite *CachedStoreTestSuite) TestTimestampsCachedPerWindow() {
	from := types.TimeOfDay{Hour: 9, Minute: 55}
	to := types.TimeOfDay{Hour: 10, Minute: 0}

	first, err := suite.cached.ListTimestamps(suite.ctx, "SPXW", suite.day, from, to)
	suite.NoError(err)
	suite.Len(first, 1)

	_, err = suite.cached.ListTimestamps(suite.ctx, "SPXW", suite.day, from, to)
	suite.NoError(err)
	suite.Equal(int64(1), suite.inner.timestamps.Load())
}
