package engine

import (
	"sort"

	"github.com/zerodte-lab/condor-backtest/internal/types"
)

// Summarize aggregates a chronological trade log into the run summary.
// Pure: it reads nothing but its arguments, so identical trade logs always
// produce identical statistics. The run ID and generation timestamp are
// stamped by the engine when the report is assembled.
func Summarize(trades []types.TradeRecord, cfg StrategyConfig) types.SummaryStats {
	stats := types.SummaryStats{
		Ticker:         cfg.Ticker,
		WingWidth:      cfg.WingWidth,
		AggregateStats: aggregate(trades),
		MaxDrawdown:    maxDrawdown(trades),
		PerWeekday:     map[string]types.AggregateStats{},
		PerEntryTime:   map[string]types.AggregateStats{},
	}

	byWeekday := map[string][]types.TradeRecord{}
	byEntry := map[string][]types.TradeRecord{}

	for _, trade := range trades {
		weekday := trade.Weekday.String()
		byWeekday[weekday] = append(byWeekday[weekday], trade)

		entry := trade.EntryTime.String()
		byEntry[entry] = append(byEntry[entry], trade)
	}

	for weekday, group := range byWeekday {
		stats.PerWeekday[weekday] = aggregate(group)
	}

	for entry, group := range byEntry {
		stats.PerEntryTime[entry] = aggregate(group)
	}

	return stats
}

// aggregate computes the per-group statistics subset. Empty groups yield the
// zero value; in particular the win rate is 0, never NaN.
func aggregate(trades []types.TradeRecord) types.AggregateStats {
	stats := types.AggregateStats{
		TotalTrades: len(trades),
	}

	if len(trades) == 0 {
		return stats
	}

	pnls := make([]float64, len(trades))

	for i, trade := range trades {
		pnls[i] = trade.RealizedPnL

		switch trade.Outcome {
		case types.OutcomeWin:
			stats.Wins++
		case types.OutcomeLoss:
			stats.Losses++
		default:
			stats.Breakevens++
		}

		stats.TotalPnL += trade.RealizedPnL

		if i == 0 || trade.RealizedPnL > stats.MaxProfit {
			stats.MaxProfit = trade.RealizedPnL
		}

		if i == 0 || trade.RealizedPnL < stats.MaxLoss {
			stats.MaxLoss = trade.RealizedPnL
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades)
	stats.MeanPnL = stats.TotalPnL / float64(stats.TotalTrades)
	stats.MedianPnL = median(pnls)

	return stats
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

// maxDrawdown is the largest peak-to-trough decline of cumulative pnl over
// the trade log in record order, reported as a non-negative number.
func maxDrawdown(trades []types.TradeRecord) float64 {
	var cumulative, peak, drawdown float64

	for _, trade := range trades {
		cumulative += trade.RealizedPnL

		if cumulative > peak {
			peak = cumulative
		}

		if dd := peak - cumulative; dd > drawdown {
			drawdown = dd
		}
	}

	return drawdown
}
