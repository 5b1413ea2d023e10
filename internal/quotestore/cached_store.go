package quotestore

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/types"
)

// DefaultCacheDays bounds the cache at roughly one trading year.
const DefaultCacheDays = 256

// CachedStore is a read-through cache in front of any QuoteStore. Entries are
// grouped by trading day and whole days are evicted least-recently-used once
// maxDays is exceeded. Because the underlying data is immutable history there
// is no invalidation beyond eviction.
type CachedStore struct {
	underlying QuoteStore
	maxDays    int

	mu   sync.Mutex
	days map[string]*dayCache
	lru  *list.List
}

type dayCache struct {
	key  string
	elem *list.Element

	snapshots  map[int64][]types.Quote
	strikes    map[string][]float64
	timestamps map[string][]time.Time

	settlementLoaded bool
	settlement       optional.Option[float64]
}

// NewCachedStore wraps store with a day-granular LRU cache. maxDays <= 0
// selects DefaultCacheDays.
func NewCachedStore(store QuoteStore, maxDays int) *CachedStore {
	if maxDays <= 0 {
		maxDays = DefaultCacheDays
	}

	return &CachedStore{
		underlying: store,
		maxDays:    maxDays,
		days:       make(map[string]*dayCache),
		lru:        list.New(),
	}
}

func dayKey(underlying string, date time.Time) string {
	return underlying + "|" + types.Midnight(date).Format("2006-01-02")
}

// day returns the cache bucket for the given trading day, creating it and
// evicting the least recently used day when the bound is exceeded.
// Caller must hold c.mu.
func (c *CachedStore) day(underlying string, date time.Time) *dayCache {
	key := dayKey(underlying, date)

	if entry, ok := c.days[key]; ok {
		c.lru.MoveToFront(entry.elem)

		return entry
	}

	entry := &dayCache{
		key:        key,
		snapshots:  make(map[int64][]types.Quote),
		strikes:    make(map[string][]float64),
		timestamps: make(map[string][]time.Time),
	}
	entry.elem = c.lru.PushFront(entry)
	c.days[key] = entry

	for c.lru.Len() > c.maxDays {
		oldest := c.lru.Back()
		evicted := oldest.Value.(*dayCache)
		c.lru.Remove(oldest)
		delete(c.days, evicted.key)
	}

	return entry
}

// GetQuote implements QuoteStore. Lookups are served from the cached
// snapshot of the quote's timestamp.
func (c *CachedStore) GetQuote(ctx context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType, strike float64) (optional.Option[types.Quote], error) {
	quotes, err := c.Snapshot(ctx, underlying, date, ts)
	if err != nil {
		return optional.None[types.Quote](), err
	}

	for _, q := range quotes {
		if q.Type == optType && q.Strike == strike {
			return optional.Some(q), nil
		}
	}

	return optional.None[types.Quote](), nil
}

// ListStrikes implements QuoteStore.
func (c *CachedStore) ListStrikes(ctx context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType) ([]float64, error) {
	key := fmt.Sprintf("%d|%s", ts.Unix(), optType)

	c.mu.Lock()
	entry := c.day(underlying, date)
	if strikes, ok := entry.strikes[key]; ok {
		c.mu.Unlock()

		return strikes, nil
	}
	c.mu.Unlock()

	strikes, err := c.underlying.ListStrikes(ctx, underlying, date, ts, optType)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.day(underlying, date).strikes[key] = strikes
	c.mu.Unlock()

	return strikes, nil
}

// Snapshot implements QuoteStore.
func (c *CachedStore) Snapshot(ctx context.Context, underlying string, date time.Time, ts time.Time) ([]types.Quote, error) {
	c.mu.Lock()
	entry := c.day(underlying, date)
	if quotes, ok := entry.snapshots[ts.Unix()]; ok {
		c.mu.Unlock()

		return quotes, nil
	}
	c.mu.Unlock()

	quotes, err := c.underlying.Snapshot(ctx, underlying, date, ts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.day(underlying, date).snapshots[ts.Unix()] = quotes
	c.mu.Unlock()

	return quotes, nil
}

// ListTimestamps implements QuoteStore.
func (c *CachedStore) ListTimestamps(ctx context.Context, underlying string, date time.Time, from, to types.TimeOfDay) ([]time.Time, error) {
	key := from.String() + "|" + to.String()

	c.mu.Lock()
	entry := c.day(underlying, date)
	if timestamps, ok := entry.timestamps[key]; ok {
		c.mu.Unlock()

		return timestamps, nil
	}
	c.mu.Unlock()

	timestamps, err := c.underlying.ListTimestamps(ctx, underlying, date, from, to)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.day(underlying, date).timestamps[key] = timestamps
	c.mu.Unlock()

	return timestamps, nil
}

// GetSettlementPrice implements QuoteStore.
func (c *CachedStore) GetSettlementPrice(ctx context.Context, underlying string, date time.Time) (optional.Option[float64], error) {
	c.mu.Lock()
	entry := c.day(underlying, date)
	if entry.settlementLoaded {
		price := entry.settlement
		c.mu.Unlock()

		return price, nil
	}
	c.mu.Unlock()

	price, err := c.underlying.GetSettlementPrice(ctx, underlying, date)
	if err != nil {
		return optional.None[float64](), err
	}

	c.mu.Lock()
	entry = c.day(underlying, date)
	entry.settlement = price
	entry.settlementLoaded = true
	c.mu.Unlock()

	return price, nil
}

// TradeDates implements QuoteStore. Not cached: it is called once per run.
func (c *CachedStore) TradeDates(ctx context.Context, underlying string, start, end optional.Option[time.Time]) ([]time.Time, error) {
	return c.underlying.TradeDates(ctx, underlying, start, end)
}

// Close implements QuoteStore.
func (c *CachedStore) Close() error {
	return c.underlying.Close()
}

// Len returns the number of cached trading days.
func (c *CachedStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}
