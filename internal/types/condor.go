package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// OptionSide indicates whether a leg was sold or bought at entry.
type OptionSide string

const (
	SideShort OptionSide = "short"
	SideLong  OptionSide = "long"
)

// CondorLeg is one of the four legs of an iron condor. ExitPrice stays empty
// until the position is evaluated.
type CondorLeg struct {
	Type       OptionType
	Strike     float64
	Side       OptionSide
	EntryPrice float64
	ExitPrice  optional.Option[float64]
}

// Position is an open iron condor: a short put spread and a short call spread
// around the underlying price. Created by the constructor, finalized exactly
// once by the evaluator.
type Position struct {
	Underlying string
	Date       time.Time
	// EntryTime is the configured entry time; EntryTimestamp is the actual
	// quote snapshot used, which may precede it by up to the entry window.
	EntryTime       TimeOfDay
	EntryTimestamp  time.Time
	UnderlyingPrice float64

	ShortPut  CondorLeg
	LongPut   CondorLeg
	ShortCall CondorLeg
	LongCall  CondorLeg

	// NetCredit is the premium collected at entry, per contract.
	NetCredit float64
}

// Legs returns the four legs in canonical order: short put, long put,
// short call, long call.
func (p *Position) Legs() []CondorLeg {
	return []CondorLeg{p.ShortPut, p.LongPut, p.ShortCall, p.LongCall}
}

// PutWing returns the strike distance of the put spread.
func (p *Position) PutWing() float64 {
	return p.ShortPut.Strike - p.LongPut.Strike
}

// CallWing returns the strike distance of the call spread.
func (p *Position) CallWing() float64 {
	return p.LongCall.Strike - p.ShortCall.Strike
}
