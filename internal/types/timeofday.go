package types

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time within a trading session, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Regular US equity/index option session bounds.
var (
	SessionOpen  = TimeOfDay{Hour: 9, Minute: 30}
	SessionClose = TimeOfDay{Hour: 16, Minute: 0}
)

// ParseTimeOfDay parses a "15:04" formatted string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String formats the time as "15:04".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinuteOfDay returns minutes elapsed since midnight.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.MinuteOfDay() < other.MinuteOfDay()
}

// After reports whether t is strictly later than other.
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.MinuteOfDay() > other.MinuteOfDay()
}

// WithinSession reports whether t falls inside the regular trading session,
// open and close inclusive.
func (t TimeOfDay) WithinSession() bool {
	return !t.Before(SessionOpen) && !t.After(SessionClose)
}

// At anchors the time of day on the given calendar date, preserving location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// Add returns the time of day shifted by the given number of minutes.
// The result is clamped to the same day.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	total := t.MinuteOfDay() + minutes
	if total < 0 {
		total = 0
	}

	if total > 23*60+59 {
		total = 23*60 + 59
	}

	return TimeOfDay{Hour: total / 60, Minute: total % 60}
}

// MarshalYAML implements yaml.Marshaler.
func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TimeOfDay) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
