package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// OptionType distinguishes calls from puts. Values match the contract_right
// column in the historical database.
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// Quote is a single historical option quote. Immutable, externally supplied.
type Quote struct {
	Underlying string     `csv:"underlying"`
	Date       time.Time  `csv:"date"`
	Timestamp  time.Time  `csv:"timestamp"`
	Type       OptionType `csv:"option_type"`
	Strike     float64    `csv:"strike"`
	Bid        float64    `csv:"bid"`
	Ask        float64    `csv:"ask"`
	// Delta is present only when the store carries greeks.
	Delta optional.Option[float64] `csv:"delta"`
	// UnderlyingPrice is the underlying price recorded alongside the quote.
	UnderlyingPrice float64 `csv:"underlying_price"`
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Midnight truncates t to its calendar date, normalized to UTC midnight.
// All trade dates in the engine are stored in this form.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
