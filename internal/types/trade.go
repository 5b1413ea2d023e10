package types

import (
	"time"
)

// Outcome classifies a trade by the sign of its realized P&L.
type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// ClassifyOutcome maps realized P&L to its outcome bucket.
func ClassifyOutcome(pnl float64) Outcome {
	switch {
	case pnl > 0:
		return OutcomeWin
	case pnl < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

// ExitReason records how a position was closed.
type ExitReason string

const (
	// ExitProfitTarget means the intraday profit target was hit before the
	// configured exit time.
	ExitProfitTarget ExitReason = "profit_target"
	// ExitTimed means the position was closed at the configured exit time.
	ExitTimed ExitReason = "timed"
	// ExitExpiration means the position was settled intrinsically at expiry.
	ExitExpiration ExitReason = "expiration"
	// ExitSettlementFallback means exit quotes were missing and the position
	// was settled against the settlement price instead.
	ExitSettlementFallback ExitReason = "settlement_fallback"
)

// TradeRecord is the finalized result of one (day, entry time) pair.
// Immutable once produced.
type TradeRecord struct {
	Date           time.Time    `csv:"date"`
	Weekday        time.Weekday `csv:"weekday"`
	EntryTime      TimeOfDay    `csv:"entry_time"`
	EntryTimestamp time.Time    `csv:"entry_timestamp"`
	ExitTimestamp  time.Time    `csv:"exit_timestamp"`
	ExitReason     ExitReason   `csv:"exit_reason"`

	ShortPutStrike  float64 `csv:"short_put_strike"`
	LongPutStrike   float64 `csv:"long_put_strike"`
	ShortCallStrike float64 `csv:"short_call_strike"`
	LongCallStrike  float64 `csv:"long_call_strike"`

	NetCredit   float64 `csv:"net_credit"`
	ExitDebit   float64 `csv:"exit_debit"`
	RealizedPnL float64 `csv:"realized_pnl"`
	// PnLPct is realized P&L as a fraction of the entry credit.
	PnLPct float64 `csv:"pnl_pct"`
	// MaxLoss is the structural worst case: wing width minus credit.
	MaxLoss float64 `csv:"max_loss"`
	Outcome Outcome `csv:"outcome"`
}
