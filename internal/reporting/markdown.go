package reporting

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

// WriteMarkdownSummary renders the run summary as a markdown report: the
// headline aggregates, the per-weekday and per-entry-time breakdowns, and a
// skip digest grouped by reason.
func WriteMarkdownSummary(path string, stats types.SummaryStats, skips []errors.SkipError) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Backtest %s\n\n", stats.ID)
	fmt.Fprintf(&sb, "Generated %s\n\n", stats.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- Ticker: %s\n", stats.Ticker)
	fmt.Fprintf(&sb, "- Wing width: %g\n", stats.WingWidth)
	fmt.Fprintf(&sb, "- Trades: %d (%d wins / %d losses / %d breakeven)\n",
		stats.TotalTrades, stats.Wins, stats.Losses, stats.Breakevens)
	fmt.Fprintf(&sb, "- Win rate: %.1f%%\n", stats.WinRate*100)
	fmt.Fprintf(&sb, "- Total P&L: %.2f, mean %.2f, median %.2f\n",
		stats.TotalPnL, stats.MeanPnL, stats.MedianPnL)
	fmt.Fprintf(&sb, "- Best trade: %.2f, worst trade: %.2f\n", stats.MaxProfit, stats.MaxLoss)
	fmt.Fprintf(&sb, "- Max drawdown: %.2f\n\n", stats.MaxDrawdown)

	writeBreakdown(&sb, "By weekday", stats.PerWeekday)
	writeBreakdown(&sb, "By entry time", stats.PerEntryTime)

	if len(skips) > 0 {
		fmt.Fprintf(&sb, "## Skipped combinations (%d)\n\n", len(skips))

		byReason := map[string]int{}
		for _, skip := range skips {
			byReason[string(skip.Reason)]++
		}

		for _, reason := range sortedKeys(byReason) {
			fmt.Fprintf(&sb, "- %s: %d\n", reason, byReason[reason])
		}

		sb.WriteString("\n")
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func writeBreakdown(sb *strings.Builder, title string, groups map[string]types.AggregateStats) {
	if len(groups) == 0 {
		return
	}

	fmt.Fprintf(sb, "## %s\n\n", title)
	sb.WriteString("| Group | Trades | Win rate | Total P&L | Mean P&L |\n")
	sb.WriteString("|-------|--------|----------|-----------|----------|\n")

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		fmt.Fprintf(sb, "| %s | %d | %.1f%% | %.2f | %.2f |\n",
			key, group.TotalTrades, group.WinRate*100, group.TotalPnL, group.MeanPnL)
	}

	sb.WriteString("\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
