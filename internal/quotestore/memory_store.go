package quotestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/types"
)

// MemoryStore is an in-memory QuoteStore. It preloads quotes into indexed
// maps so lookups never touch a database, which makes it the store of choice
// for tests and for small replay runs.
type MemoryStore struct {
	mu sync.RWMutex

	// quotes[underlying][date][timestamp][type][strike]
	quotes map[string]map[int64]map[int64]map[types.OptionType]map[float64]types.Quote

	// settlements[underlying][date]
	settlements map[string]map[int64]float64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quotes:      make(map[string]map[int64]map[int64]map[types.OptionType]map[float64]types.Quote),
		settlements: make(map[string]map[int64]float64),
	}
}

// Load indexes the given quotes. Quotes with a zero bid or ask are dropped,
// matching the database store's live-market filter.
func (m *MemoryStore) Load(quotes []types.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range quotes {
		if q.Bid <= 0 || q.Ask <= 0 {
			continue
		}

		day := types.Midnight(q.Date).Unix()
		ts := q.Timestamp.Unix()

		byDate, ok := m.quotes[q.Underlying]
		if !ok {
			byDate = make(map[int64]map[int64]map[types.OptionType]map[float64]types.Quote)
			m.quotes[q.Underlying] = byDate
		}

		byTs, ok := byDate[day]
		if !ok {
			byTs = make(map[int64]map[types.OptionType]map[float64]types.Quote)
			byDate[day] = byTs
		}

		byType, ok := byTs[ts]
		if !ok {
			byType = make(map[types.OptionType]map[float64]types.Quote)
			byTs[ts] = byType
		}

		byStrike, ok := byType[q.Type]
		if !ok {
			byStrike = make(map[float64]types.Quote)
			byType[q.Type] = byStrike
		}

		byStrike[q.Strike] = q
	}
}

// SetSettlement records the settlement price for a trading day.
func (m *MemoryStore) SetSettlement(underlying string, date time.Time, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDate, ok := m.settlements[underlying]
	if !ok {
		byDate = make(map[int64]float64)
		m.settlements[underlying] = byDate
	}

	byDate[types.Midnight(date).Unix()] = price
}

// GetQuote implements QuoteStore.
func (m *MemoryStore) GetQuote(_ context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType, strike float64) (optional.Option[types.Quote], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quote, ok := m.quotes[underlying][types.Midnight(date).Unix()][ts.Unix()][optType][strike]
	if !ok {
		return optional.None[types.Quote](), nil
	}

	return optional.Some(quote), nil
}

// ListStrikes implements QuoteStore.
func (m *MemoryStore) ListStrikes(_ context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byStrike := m.quotes[underlying][types.Midnight(date).Unix()][ts.Unix()][optType]
	if len(byStrike) == 0 {
		return nil, nil
	}

	strikes := make([]float64, 0, len(byStrike))
	for strike := range byStrike {
		strikes = append(strikes, strike)
	}

	sort.Float64s(strikes)

	return strikes, nil
}

// Snapshot implements QuoteStore.
func (m *MemoryStore) Snapshot(_ context.Context, underlying string, date time.Time, ts time.Time) ([]types.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := m.quotes[underlying][types.Midnight(date).Unix()][ts.Unix()]
	if len(byType) == 0 {
		return nil, nil
	}

	var quotes []types.Quote
	for _, byStrike := range byType {
		for _, q := range byStrike {
			quotes = append(quotes, q)
		}
	}

	// Deterministic order: calls before puts, strikes ascending.
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].Type != quotes[j].Type {
			return quotes[i].Type < quotes[j].Type
		}

		return quotes[i].Strike < quotes[j].Strike
	})

	return quotes, nil
}

// ListTimestamps implements QuoteStore.
func (m *MemoryStore) ListTimestamps(_ context.Context, underlying string, date time.Time, from, to types.TimeOfDay) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := types.Midnight(date)

	byTs := m.quotes[underlying][day.Unix()]
	if len(byTs) == 0 {
		return nil, nil
	}

	lo := from.At(day)
	hi := to.At(day)

	var timestamps []time.Time

	for unix := range byTs {
		ts := time.Unix(unix, 0).UTC()
		if ts.Before(lo) || ts.After(hi) {
			continue
		}

		timestamps = append(timestamps, ts)
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	return timestamps, nil
}

// GetSettlementPrice implements QuoteStore.
func (m *MemoryStore) GetSettlementPrice(_ context.Context, underlying string, date time.Time) (optional.Option[float64], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.settlements[underlying][types.Midnight(date).Unix()]
	if !ok {
		return optional.None[float64](), nil
	}

	return optional.Some(price), nil
}

// TradeDates implements QuoteStore.
func (m *MemoryStore) TradeDates(_ context.Context, underlying string, start, end optional.Option[time.Time]) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDate := m.quotes[underlying]
	if len(byDate) == 0 {
		return nil, nil
	}

	var dates []time.Time

	for unix := range byDate {
		date := time.Unix(unix, 0).UTC()
		if start.IsSome() && date.Before(types.Midnight(start.Unwrap())) {
			continue
		}

		if end.IsSome() && date.After(types.Midnight(end.Unwrap())) {
			continue
		}

		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return dates, nil
}

// Close implements QuoteStore.
func (m *MemoryStore) Close() error {
	return nil
}
