package errors

import (
	"errors"
	"fmt"
	"time"
)

// SkipReason identifies why a (day, entry time) pair produced no trade.
type SkipReason string

const (
	SkipNoEntrySnapshot   SkipReason = "no_entry_snapshot"
	SkipNoShortStrike     SkipReason = "no_short_strike"
	SkipMissingWingStrike SkipReason = "missing_wing_strike"
	SkipMissingLegQuote   SkipReason = "missing_leg_quote"
	SkipNonPositiveCredit SkipReason = "non_positive_credit"
	SkipNoExitData        SkipReason = "no_exit_data"
	SkipNoSettlement      SkipReason = "no_settlement"
)

// SkipError signals that a specific (day, entry time) pair has incomplete
// market data. It is diagnostic, not fatal: the runner records it and moves on.
type SkipError struct {
	Date      time.Time
	EntryTime string
	Reason    SkipReason
	Detail    string
}

// NewSkip creates a SkipError for the given pair and reason.
func NewSkip(date time.Time, entryTime string, reason SkipReason, detail string) *SkipError {
	return &SkipError{
		Date:      date,
		EntryTime: entryTime,
		Reason:    reason,
		Detail:    detail,
	}
}

// NewSkipf creates a SkipError with a formatted detail message.
func NewSkipf(date time.Time, entryTime string, reason SkipReason, format string, args ...any) *SkipError {
	return &SkipError{
		Date:      date,
		EntryTime: entryTime,
		Reason:    reason,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *SkipError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("skip %s %s: %s (%s)", e.Date.Format("2006-01-02"), e.EntryTime, e.Reason, e.Detail)
	}

	return fmt.Sprintf("skip %s %s: %s", e.Date.Format("2006-01-02"), e.EntryTime, e.Reason)
}

// IsSkip reports whether err is a SkipError anywhere in its chain.
func IsSkip(err error) bool {
	var skip *SkipError

	return errors.As(err, &skip)
}

// AsSkip extracts the SkipError from err's chain, if present.
func AsSkip(err error) (*SkipError, bool) {
	var skip *SkipError
	if errors.As(err, &skip) {
		return skip, true
	}

	return nil, false
}
