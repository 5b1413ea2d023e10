package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
)

// StrikePolicy selects how the short strikes are placed around the
// underlying price.
type StrikePolicy string

const (
	// StrikePolicyNearest shorts the strikes nearest the underlying price:
	// the closest put at or below it and the closest call at or above it.
	StrikePolicyNearest StrikePolicy = "nearest"
	// StrikePolicyDelta shorts the furthest strikes still inside the delta
	// threshold: the call with the highest delta below the threshold and the
	// put with the lowest delta above the negated threshold.
	StrikePolicyDelta StrikePolicy = "delta"
)

// AllStrikePolicies lists the accepted strike_selection values.
var AllStrikePolicies = []any{string(StrikePolicyNearest), string(StrikePolicyDelta)}

const (
	// DefaultDeltaThreshold matches the 20-delta short strike rule.
	DefaultDeltaThreshold = 0.20
	// DefaultEntryWindowMinutes is how far back from the entry time the
	// constructor may reach for the latest quote snapshot.
	DefaultEntryWindowMinutes = 5
)

// StrategyConfig describes one iron condor parameter set. Immutable once
// validated; every run receives it by value.
type StrategyConfig struct {
	Ticker    string  `yaml:"ticker" json:"ticker" jsonschema:"title=Ticker,description=Underlying symbol (e.g. SPXW or SPY)" validate:"required"`
	WingWidth float64 `yaml:"wing_width" json:"wing_width" jsonschema:"title=Wing Width,description=Strike distance between a short leg and its protective long leg" validate:"gt=0"`

	// EntryTimes is the ordered set of intraday entry times to sweep.
	EntryTimes []types.TimeOfDay `yaml:"entry_times" json:"entry_times" jsonschema:"title=Entry Times" validate:"min=1"`
	// ExitTime closes the position at a fixed time of day. Unset means hold
	// to expiration and settle intrinsically.
	ExitTime optional.Option[types.TimeOfDay] `yaml:"exit_time" json:"exit_time" jsonschema:"title=Exit Time"`

	ExcludedWeekdays []time.Weekday `yaml:"excluded_weekdays" json:"excluded_weekdays" jsonschema:"title=Excluded Weekdays"`
	ExcludedDates    []time.Time    `yaml:"excluded_dates" json:"excluded_dates" jsonschema:"title=Excluded Dates"`

	StrikeSelection StrikePolicy `yaml:"strike_selection" json:"strike_selection" jsonschema:"title=Strike Selection" validate:"oneof=nearest delta"`
	// DeltaThreshold bounds the short-leg delta under the delta policy.
	DeltaThreshold float64 `yaml:"delta_threshold" json:"delta_threshold" jsonschema:"title=Delta Threshold,minimum=0,maximum=1"`

	// ProfitTarget, as a fraction of the entry credit, enables intraday
	// monitoring: the position closes at the first timestamp where P&L
	// reaches target x credit. Requires an exit time.
	ProfitTarget optional.Option[float64] `yaml:"profit_target" json:"profit_target" jsonschema:"title=Profit Target"`

	// EntryWindowMinutes is the lookback for the entry snapshot.
	EntryWindowMinutes int `yaml:"entry_window_minutes" json:"entry_window_minutes" jsonschema:"title=Entry Window Minutes"`
}

// DefaultConfig returns a StrategyConfig with the strategy defaults:
// SPXW 20-point wings, 10:00 entry, 13:00 exit, 20-delta shorts.
func DefaultConfig() StrategyConfig {
	return StrategyConfig{
		Ticker:             "SPXW",
		WingWidth:          20,
		EntryTimes:         []types.TimeOfDay{{Hour: 10, Minute: 0}},
		ExitTime:           optional.Some(types.TimeOfDay{Hour: 13, Minute: 0}),
		ExcludedWeekdays:   nil,
		ExcludedDates:      nil,
		StrikeSelection:    StrikePolicyDelta,
		DeltaThreshold:     DefaultDeltaThreshold,
		ProfitTarget:       optional.None[float64](),
		EntryWindowMinutes: DefaultEntryWindowMinutes,
	}
}

// yamlStrategyConfig is the YAML wire form of StrategyConfig.
type yamlStrategyConfig struct {
	Ticker             string   `yaml:"ticker"`
	WingWidth          float64  `yaml:"wing_width"`
	EntryTimes         []string `yaml:"entry_times"`
	ExitTime           string   `yaml:"exit_time"`
	ExcludedWeekdays   []string `yaml:"excluded_weekdays"`
	ExcludedDates      []string `yaml:"excluded_dates"`
	StrikeSelection    string   `yaml:"strike_selection"`
	DeltaThreshold     float64  `yaml:"delta_threshold"`
	ProfitTarget       *float64 `yaml:"profit_target"`
	EntryWindowMinutes int      `yaml:"entry_window_minutes"`
}

// exitExpiration is the YAML sentinel for holding to expiration.
const exitExpiration = "expiration"

// UnmarshalYAML implements custom unmarshaling for StrategyConfig.
func (c *StrategyConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw yamlStrategyConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	*c = DefaultConfig()
	c.EntryTimes = nil
	c.ExitTime = optional.None[types.TimeOfDay]()

	if raw.Ticker != "" {
		c.Ticker = raw.Ticker
	}

	if raw.WingWidth != 0 {
		c.WingWidth = raw.WingWidth
	}

	for _, s := range raw.EntryTimes {
		t, err := types.ParseTimeOfDay(s)
		if err != nil {
			return err
		}

		c.EntryTimes = append(c.EntryTimes, t)
	}

	if raw.ExitTime != "" && raw.ExitTime != exitExpiration {
		t, err := types.ParseTimeOfDay(raw.ExitTime)
		if err != nil {
			return err
		}

		c.ExitTime = optional.Some(t)
	}

	for _, name := range raw.ExcludedWeekdays {
		weekday, err := parseWeekday(name)
		if err != nil {
			return err
		}

		c.ExcludedWeekdays = append(c.ExcludedWeekdays, weekday)
	}

	for _, s := range raw.ExcludedDates {
		date, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("invalid excluded date %q: %w", s, err)
		}

		c.ExcludedDates = append(c.ExcludedDates, types.Midnight(date))
	}

	if raw.StrikeSelection != "" {
		c.StrikeSelection = StrikePolicy(raw.StrikeSelection)
	}

	if raw.DeltaThreshold != 0 {
		c.DeltaThreshold = raw.DeltaThreshold
	}

	if raw.ProfitTarget != nil {
		c.ProfitTarget = optional.Some(*raw.ProfitTarget)
	}

	if raw.EntryWindowMinutes != 0 {
		c.EntryWindowMinutes = raw.EntryWindowMinutes
	}

	return nil
}

// MarshalYAML renders the config in its wire form, the inverse of
// UnmarshalYAML.
func (c StrategyConfig) MarshalYAML() (interface{}, error) {
	raw := yamlStrategyConfig{
		Ticker:             c.Ticker,
		WingWidth:          c.WingWidth,
		StrikeSelection:    string(c.StrikeSelection),
		DeltaThreshold:     c.DeltaThreshold,
		EntryWindowMinutes: c.EntryWindowMinutes,
		ExitTime:           exitExpiration,
	}

	for _, entry := range c.EntryTimes {
		raw.EntryTimes = append(raw.EntryTimes, entry.String())
	}

	if t, err := c.ExitTime.Take(); err == nil {
		raw.ExitTime = t.String()
	}

	for _, weekday := range c.ExcludedWeekdays {
		raw.ExcludedWeekdays = append(raw.ExcludedWeekdays, weekday.String())
	}

	for _, date := range c.ExcludedDates {
		raw.ExcludedDates = append(raw.ExcludedDates, date.Format("2006-01-02"))
	}

	if target, err := c.ProfitTarget.Take(); err == nil {
		raw.ProfitTarget = &target
	}

	return raw, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}

	return 0, fmt.Errorf("invalid weekday %q", name)
}

// Validate is the single validation entry point. Callers (CLI, dashboard)
// must invoke it before Run; the runner invokes it again before iterating.
func (c *StrategyConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid strategy config", err)
	}

	if c.Ticker == "" {
		return errors.New(errors.ErrCodeMissingTicker, "ticker is required")
	}

	if c.WingWidth <= 0 {
		return errors.Newf(errors.ErrCodeInvalidWingWidth, "wing width must be positive, got %g", c.WingWidth)
	}

	if len(c.EntryTimes) == 0 {
		return errors.New(errors.ErrCodeNoEntryTimes, "at least one entry time is required")
	}

	for _, entry := range c.EntryTimes {
		if !entry.WithinSession() {
			return errors.Newf(errors.ErrCodeEntryOutsideSession,
				"entry time %s is outside the %s-%s session", entry, types.SessionOpen, types.SessionClose)
		}
	}

	if c.ExitTime.IsSome() {
		exit := c.ExitTime.Unwrap()
		if !exit.WithinSession() {
			return errors.Newf(errors.ErrCodeEntryOutsideSession,
				"exit time %s is outside the %s-%s session", exit, types.SessionOpen, types.SessionClose)
		}

		for _, entry := range c.EntryTimes {
			if exit.Before(entry) {
				return errors.Newf(errors.ErrCodeExitBeforeEntry,
					"exit time %s is earlier than entry time %s", exit, entry)
			}
		}
	}

	switch c.StrikeSelection {
	case StrikePolicyNearest, StrikePolicyDelta:
	default:
		return errors.Newf(errors.ErrCodeInvalidStrikePolicy, "unknown strike selection %q", c.StrikeSelection)
	}

	if c.StrikeSelection == StrikePolicyDelta && (c.DeltaThreshold <= 0 || c.DeltaThreshold >= 1) {
		return errors.Newf(errors.ErrCodeInvalidDeltaThreshold,
			"delta threshold must be in (0, 1), got %g", c.DeltaThreshold)
	}

	if c.ProfitTarget.IsSome() {
		target := c.ProfitTarget.Unwrap()
		if target <= 0 || target >= 1 {
			return errors.Newf(errors.ErrCodeInvalidProfitTarget,
				"profit target must be in (0, 1), got %g", target)
		}

		if c.ExitTime.IsNone() {
			return errors.New(errors.ErrCodeInvalidProfitTarget,
				"profit target requires an exit time to bound intraday monitoring")
		}
	}

	if c.EntryWindowMinutes <= 0 {
		return errors.Newf(errors.ErrCodeInvalidEntryWindow,
			"entry window must be positive, got %d minutes", c.EntryWindowMinutes)
	}

	return nil
}

// IsExcluded reports whether the given trading day is filtered out by the
// weekday or date exclusion sets.
func (c *StrategyConfig) IsExcluded(date time.Time) bool {
	for _, weekday := range c.ExcludedWeekdays {
		if date.Weekday() == weekday {
			return true
		}
	}

	day := types.Midnight(date)
	for _, excluded := range c.ExcludedDates {
		if day.Equal(excluded) {
			return true
		}
	}

	return false
}

// GenerateSchema generates a JSON schema for the StrategyConfig.
func (c *StrategyConfig) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch {
			case t.String() == "types.TimeOfDay" || t.String() == "optional.Option[types.TimeOfDay]":
				return &jsonschema.Schema{
					Type:    "string",
					Pattern: `^([01]?\d|2[0-3]):[0-5]\d$`,
				}
			case t.String() == "optional.Option[float64]":
				return &jsonschema.Schema{
					Type: "number",
				}
			case t.String() == "time.Weekday":
				return &jsonschema.Schema{
					Type: "string",
				}
			case strings.Contains(t.String(), "StrikePolicy"):
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllStrikePolicies,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "condor-strategy-config"
	schema.Description = "Configuration schema for an iron condor backtest"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the StrategyConfig.
func (c *StrategyConfig) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
