package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	engine_v1 "github.com/zerodte-lab/condor-backtest/internal/backtest/engine/engine_v1"
	"github.com/zerodte-lab/condor-backtest/internal/calendar"
	"github.com/zerodte-lab/condor-backtest/internal/logger"
	"github.com/zerodte-lab/condor-backtest/internal/quotestore"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/internal/version"
	"gopkg.in/yaml.v3"
)

// configFromFlags assembles a strategy config from the run command's flags.
// A --config file takes precedence over individual strategy flags.
func configFromFlags(cmd *cli.Command) (string, error) {
	if path := cmd.String("config"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file: %w", err)
		}

		return string(content), nil
	}

	cfg := engine_v1.DefaultConfig()
	cfg.Ticker = cmd.String("ticker")
	cfg.WingWidth = cmd.Float("wing-width")
	cfg.StrikeSelection = engine_v1.StrikePolicy(cmd.String("strike-policy"))
	cfg.DeltaThreshold = cmd.Float("delta-threshold")
	cfg.EntryWindowMinutes = int(cmd.Int("entry-window"))

	cfg.EntryTimes = nil
	for _, raw := range cmd.StringSlice("entry-time") {
		entry, err := types.ParseTimeOfDay(raw)
		if err != nil {
			return "", err
		}

		cfg.EntryTimes = append(cfg.EntryTimes, entry)
	}

	cfg.ExitTime = optional.None[types.TimeOfDay]()
	if raw := cmd.String("exit-time"); raw != "" && raw != "expiration" {
		exit, err := types.ParseTimeOfDay(raw)
		if err != nil {
			return "", err
		}

		cfg.ExitTime = optional.Some(exit)
	}

	if cmd.IsSet("profit-target") {
		cfg.ProfitTarget = optional.Some(cmd.Float("profit-target"))
	}

	excluded := yamlList(cmd.StringSlice("exclude-weekday"))
	dates := yamlList(cmd.StringSlice("exclude-date"))

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	// Exclusions round-trip through the YAML form so the engine applies the
	// same parsing and validation as file-based configs.
	raw := string(content)
	if excluded != "" {
		raw += "excluded_weekdays: " + excluded + "\n"
	}

	if dates != "" {
		raw += "excluded_dates: " + dates + "\n"
	}

	return raw, nil
}

func yamlList(values []string) string {
	if len(values) == 0 {
		return ""
	}

	out := "["
	for i, v := range values {
		if i > 0 {
			out += ", "
		}

		out += fmt.Sprintf("%q", v)
	}

	return out + "]"
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	logr, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer logr.Sync()

	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	// The calendar needs the effective ticker, which a --config file may
	// override.
	var tickerCfg struct {
		Ticker string `yaml:"ticker"`
	}

	if err := yaml.Unmarshal([]byte(config), &tickerCfg); err != nil {
		return fmt.Errorf("failed to parse strategy config: %w", err)
	}

	if tickerCfg.Ticker == "" {
		tickerCfg.Ticker = cmd.String("ticker")
	}

	store, err := quotestore.NewDuckDBStore(cmd.String("db"), logr)
	if err != nil {
		return err
	}
	defer store.Close()

	cached := quotestore.NewCachedStore(store, int(cmd.Int("cache-days")))

	backtester := engine_v1.NewBacktestEngineV1()
	if err := backtester.Initialize(config); err != nil {
		return err
	}

	if err := backtester.SetQuoteStore(cached); err != nil {
		return err
	}

	if err := backtester.SetCalendar(calendar.NewStoreCalendar(cached, tickerCfg.Ticker)); err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		if err := backtester.SetResultsFolder(output); err != nil {
			return err
		}
	}

	if err := backtester.SetDateRange(cmd.String("start"), cmd.String("end")); err != nil {
		return err
	}

	backtester.SetConcurrency(int(cmd.Int("concurrency")))

	var bar *progressbar.ProgressBar

	backtester.SetProgressCallback(func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total))
		}

		_ = bar.Set(done)
	})

	report, err := backtester.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d trades, %d skipped, win rate %.1f%%, total P&L %.2f\n",
		report.Stats.TotalTrades, len(report.Skips), report.Stats.WinRate*100, report.Stats.TotalPnL)

	return nil
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	cfg := engine_v1.DefaultConfig()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "condor-backtest",
		Usage:   "Backtest 0DTE iron condor strategies against historical option quotes",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest sweep",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Usage:    "Path to the DuckDB quote database",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a YAML strategy config; overrides strategy flags",
					},
					&cli.StringFlag{
						Name:    "ticker",
						Aliases: []string{"t"},
						Usage:   "Underlying symbol",
						Value:   "SPXW",
					},
					&cli.FloatFlag{
						Name:    "wing-width",
						Aliases: []string{"w"},
						Usage:   "Strike distance between short and long legs",
						Value:   20,
					},
					&cli.StringSliceFlag{
						Name:  "entry-time",
						Usage: "Entry time in HH:MM, repeatable",
						Value: []string{"10:00"},
					},
					&cli.StringFlag{
						Name:  "exit-time",
						Usage: "Exit time in HH:MM, or 'expiration' to hold to settlement",
						Value: "13:00",
					},
					&cli.StringFlag{
						Name:  "strike-policy",
						Usage: "Short strike placement: nearest or delta",
						Value: string(engine_v1.StrikePolicyDelta),
					},
					&cli.FloatFlag{
						Name:  "delta-threshold",
						Usage: "Short leg delta bound under the delta policy",
						Value: engine_v1.DefaultDeltaThreshold,
					},
					&cli.FloatFlag{
						Name:  "profit-target",
						Usage: "Close early at this fraction of the entry credit",
					},
					&cli.IntFlag{
						Name:  "entry-window",
						Usage: "Entry snapshot lookback in minutes",
						Value: engine_v1.DefaultEntryWindowMinutes,
					},
					&cli.StringSliceFlag{
						Name:  "exclude-weekday",
						Usage: "Weekday to exclude (e.g. Friday), repeatable",
					},
					&cli.StringSliceFlag{
						Name:  "exclude-date",
						Usage: "Date to exclude in YYYY-MM-DD, repeatable",
					},
					&cli.StringFlag{
						Name:  "start",
						Usage: "First trading day in YYYY-MM-DD",
					},
					&cli.StringFlag{
						Name:  "end",
						Usage: "Last trading day in YYYY-MM-DD",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Results folder; omit to skip writing reports",
						Value:   "results",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Parallel combinations; 0 uses one worker per CPU",
					},
					&cli.IntFlag{
						Name:  "cache-days",
						Usage: "Trading days kept in the quote cache",
						Value: quotestore.DefaultCacheDays,
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for the strategy config",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
