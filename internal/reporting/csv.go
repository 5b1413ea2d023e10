// Package reporting renders finished backtest runs into files: a CSV trade
// log and a human-readable markdown summary.
package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/zerodte-lab/condor-backtest/internal/types"
)

const timestampLayout = "2006-01-02T15:04:05Z07:00"

// tradeHeader matches the csv tags on types.TradeRecord, in field order.
var tradeHeader = []string{
	"date", "weekday", "entry_time", "entry_timestamp", "exit_timestamp", "exit_reason",
	"short_put_strike", "long_put_strike", "short_call_strike", "long_call_strike",
	"net_credit", "exit_debit", "realized_pnl", "pnl_pct", "max_loss", "outcome",
}

// WriteTradesCSV writes the trade log to path. Rows keep the trade log's
// order, one row per trade.
func WriteTradesCSV(path string, trades []types.TradeRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trade log file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(tradeHeader); err != nil {
		return fmt.Errorf("failed to write trade log header: %w", err)
	}

	for _, trade := range trades {
		row := []string{
			trade.Date.Format("2006-01-02"),
			trade.Weekday.String(),
			trade.EntryTime.String(),
			trade.EntryTimestamp.Format(timestampLayout),
			trade.ExitTimestamp.Format(timestampLayout),
			string(trade.ExitReason),
			formatFloat(trade.ShortPutStrike),
			formatFloat(trade.LongPutStrike),
			formatFloat(trade.ShortCallStrike),
			formatFloat(trade.LongCallStrike),
			formatFloat(trade.NetCredit),
			formatFloat(trade.ExitDebit),
			formatFloat(trade.RealizedPnL),
			formatFloat(trade.PnLPct),
			formatFloat(trade.MaxLoss),
			string(trade.Outcome),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write trade row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
