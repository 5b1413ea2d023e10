package quotestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/zerodte-lab/condor-backtest/internal/logger"
	"github.com/zerodte-lab/condor-backtest/internal/types"
	"github.com/zerodte-lab/condor-backtest/pkg/errors"
	"go.uber.org/zap"
)

// quoteTable is the table the ingestion pipeline populates. One row per
// (contract, timestamp) observation.
const quoteTable = "optionData_Backtesting"

// DuckDBStore reads historical option quotes from a DuckDB database.
// Rows with a zero bid or ask are treated as absent quotes.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBStore opens the DuckDB database at path read-only.
func NewDuckDBStore(path string, logger *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to open quote database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to connect to quote database", err)
	}

	logger.Debug("Opened DuckDB quote store", zap.String("path", path))

	return &DuckDBStore{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// quoteColumns are selected in scanQuote order.
var quoteColumns = []string{
	"ticker",
	"trade_date",
	"data_timestamp",
	"contract_right",
	"contract_strike",
	"data_bid",
	"data_ask",
	"data_delta",
	"data_underlying_price",
}

func scanQuote(rows *sql.Rows) (types.Quote, error) {
	var (
		quote           types.Quote
		right           string
		delta           sql.NullFloat64
		underlyingPrice sql.NullFloat64
	)

	err := rows.Scan(
		&quote.Underlying,
		&quote.Date,
		&quote.Timestamp,
		&right,
		&quote.Strike,
		&quote.Bid,
		&quote.Ask,
		&delta,
		&underlyingPrice,
	)
	if err != nil {
		return types.Quote{}, errors.Wrap(errors.ErrCodeCorruptRecord, "failed to scan quote row", err)
	}

	quote.Date = types.Midnight(quote.Date)
	quote.Type = types.OptionType(right)

	if quote.Type != types.OptionTypeCall && quote.Type != types.OptionTypePut {
		return types.Quote{}, errors.Newf(errors.ErrCodeCorruptRecord, "unknown contract right %q", right)
	}

	if delta.Valid {
		quote.Delta = optional.Some(delta.Float64)
	}

	if underlyingPrice.Valid {
		quote.UnderlyingPrice = underlyingPrice.Float64
	}

	return quote, nil
}

// liveQuoteSelect builds the shared SELECT for quotes with a live market.
func (d *DuckDBStore) liveQuoteSelect(underlying string, date time.Time, ts time.Time) squirrel.SelectBuilder {
	return d.sq.
		Select(quoteColumns...).
		From(quoteTable).
		Where(squirrel.Eq{"ticker": underlying}).
		Where(squirrel.Eq{"trade_date": date.Format("2006-01-02")}).
		Where(squirrel.Eq{"data_timestamp": ts}).
		Where(squirrel.Gt{"data_bid": 0}).
		Where(squirrel.Gt{"data_ask": 0})
}

// GetQuote implements QuoteStore.
func (d *DuckDBStore) GetQuote(ctx context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType, strike float64) (optional.Option[types.Quote], error) {
	query := d.liveQuoteSelect(underlying, date, ts).
		Where(squirrel.Eq{"contract_right": string(optType)}).
		Where(squirrel.Eq{"contract_strike": strike}).
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return optional.None[types.Quote](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to build quote query", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return optional.None[types.Quote](), errors.Wrap(errors.ErrCodeQueryFailed, "quote lookup failed", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return optional.None[types.Quote](), errors.Wrap(errors.ErrCodeQueryFailed, "quote lookup failed", err)
		}

		return optional.None[types.Quote](), nil
	}

	quote, err := scanQuote(rows)
	if err != nil {
		return optional.None[types.Quote](), err
	}

	return optional.Some(quote), nil
}

// ListStrikes implements QuoteStore.
func (d *DuckDBStore) ListStrikes(ctx context.Context, underlying string, date time.Time, ts time.Time, optType types.OptionType) ([]float64, error) {
	query := d.sq.
		Select("DISTINCT contract_strike").
		From(quoteTable).
		Where(squirrel.Eq{"ticker": underlying}).
		Where(squirrel.Eq{"trade_date": date.Format("2006-01-02")}).
		Where(squirrel.Eq{"data_timestamp": ts}).
		Where(squirrel.Eq{"contract_right": string(optType)}).
		Where(squirrel.Gt{"data_bid": 0}).
		Where(squirrel.Gt{"data_ask": 0}).
		OrderBy("contract_strike ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build strike query", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "strike listing failed", err)
	}
	defer rows.Close()

	var strikes []float64

	for rows.Next() {
		var strike float64
		if err := rows.Scan(&strike); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorruptRecord, "failed to scan strike", err)
		}

		strikes = append(strikes, strike)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "strike listing failed", err)
	}

	return strikes, nil
}

// Snapshot implements QuoteStore.
func (d *DuckDBStore) Snapshot(ctx context.Context, underlying string, date time.Time, ts time.Time) ([]types.Quote, error) {
	query := d.liveQuoteSelect(underlying, date, ts).
		OrderBy("contract_right ASC", "contract_strike ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build snapshot query", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "snapshot query failed", err)
	}
	defer rows.Close()

	var quotes []types.Quote

	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}

		quotes = append(quotes, quote)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "snapshot query failed", err)
	}

	return quotes, nil
}

// ListTimestamps implements QuoteStore.
func (d *DuckDBStore) ListTimestamps(ctx context.Context, underlying string, date time.Time, from, to types.TimeOfDay) ([]time.Time, error) {
	query := d.sq.
		Select("DISTINCT data_timestamp").
		From(quoteTable).
		Where(squirrel.Eq{"ticker": underlying}).
		Where(squirrel.Eq{"trade_date": date.Format("2006-01-02")}).
		Where(squirrel.GtOrEq{"data_timestamp": from.At(date)}).
		Where(squirrel.LtOrEq{"data_timestamp": to.At(date)}).
		Where(squirrel.Gt{"data_bid": 0}).
		Where(squirrel.Gt{"data_ask": 0}).
		OrderBy("data_timestamp ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build timestamp query", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "timestamp listing failed", err)
	}
	defer rows.Close()

	var timestamps []time.Time

	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorruptRecord, "failed to scan timestamp", err)
		}

		timestamps = append(timestamps, ts)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "timestamp listing failed", err)
	}

	return timestamps, nil
}

// GetSettlementPrice implements QuoteStore. The settlement price is the
// underlying price on the day's final quote, which for 0DTE contracts is the
// closest available proxy for the official settlement print.
func (d *DuckDBStore) GetSettlementPrice(ctx context.Context, underlying string, date time.Time) (optional.Option[float64], error) {
	query := d.sq.
		Select("data_underlying_price").
		From(quoteTable).
		Where(squirrel.Eq{"ticker": underlying}).
		Where(squirrel.Eq{"trade_date": date.Format("2006-01-02")}).
		Where(squirrel.NotEq{"data_underlying_price": nil}).
		OrderBy("data_timestamp DESC").
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return optional.None[float64](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to build settlement query", err)
	}

	var price float64

	err = d.db.QueryRowContext(ctx, sqlStr, args...).Scan(&price)
	if err == sql.ErrNoRows {
		return optional.None[float64](), nil
	}

	if err != nil {
		return optional.None[float64](), errors.Wrap(errors.ErrCodeQueryFailed, "settlement lookup failed", err)
	}

	return optional.Some(price), nil
}

// TradeDates implements QuoteStore.
func (d *DuckDBStore) TradeDates(ctx context.Context, underlying string, start, end optional.Option[time.Time]) ([]time.Time, error) {
	query := d.sq.
		Select("DISTINCT trade_date").
		From(quoteTable).
		Where(squirrel.Eq{"ticker": underlying}).
		OrderBy("trade_date ASC")

	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"trade_date": start.Unwrap().Format("2006-01-02")})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"trade_date": end.Unwrap().Format("2006-01-02")})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build trade date query", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "trade date listing failed", err)
	}
	defer rows.Close()

	var dates []time.Time

	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorruptRecord, "failed to scan trade date", err)
		}

		dates = append(dates, types.Midnight(date))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "trade date listing failed", err)
	}

	return dates, nil
}

// Close implements QuoteStore.
func (d *DuckDBStore) Close() error {
	return d.db.Close()
}
