package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AggregateStats is the subset of fields recomputed per grouping.
type AggregateStats struct {
	// Count of all trades in the group.
	TotalTrades int `yaml:"total_trades"`
	// Count of trades with positive pnl.
	Wins int `yaml:"wins"`
	// Count of trades with negative pnl.
	Losses int `yaml:"losses"`
	// Count of trades with exactly zero pnl.
	Breakevens int `yaml:"breakevens"`
	// Win rate in [0, 1]. Zero when the group is empty.
	WinRate float64 `yaml:"win_rate"`
	// Mean realized pnl.
	MeanPnL float64 `yaml:"mean_pnl"`
	// Median realized pnl.
	MedianPnL float64 `yaml:"median_pnl"`
	// Sum of realized pnl.
	TotalPnL float64 `yaml:"total_pnl"`
	// Best single trade.
	MaxProfit float64 `yaml:"max_profit"`
	// Worst single trade.
	MaxLoss float64 `yaml:"max_loss"`
}

// SummaryStats is the aggregate report for one backtest run. Derived,
// recomputed each run, never persisted by the engine itself.
type SummaryStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id"`
	// GeneratedAt is when this summary was computed.
	GeneratedAt time.Time `yaml:"generated_at"`
	Ticker      string    `yaml:"ticker"`
	WingWidth   float64   `yaml:"wing_width"`

	AggregateStats `yaml:",inline"`

	// MaxDrawdown is the largest peak-to-trough decline of cumulative pnl
	// in record order.
	MaxDrawdown float64 `yaml:"max_drawdown"`

	// PerWeekday recomputes the aggregate subset per calendar weekday.
	PerWeekday map[string]AggregateStats `yaml:"per_weekday"`
	// PerEntryTime recomputes the aggregate subset per configured entry time.
	PerEntryTime map[string]AggregateStats `yaml:"per_entry_time"`
}

// WriteSummaryStats writes the summary to path as YAML.
func WriteSummaryStats(path string, stats SummaryStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal summary stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary stats to file: %w", err)
	}

	return nil
}
