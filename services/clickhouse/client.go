package clickhouse

import (
	"context"
	"fmt"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"

	"brokersim/services/engine"
)

type Options struct {
	Addr     string
	Database string
	Table    string
	User     string
	Password string
}

// Client reads bars from ClickHouse over the native protocol. Price columns
// are stored as decimals and converted to float64 at this boundary; the
// engine itself works in floats.
type Client struct {
	conn clickhouse.Conn
	opts Options
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{conn: conn, opts: opts}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// EnsureSchema creates the bars and trades tables if missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol LowCardinality(String),
			interval LowCardinality(String),
			open_time_ms UInt64,
			close_time_ms UInt64,
			open Decimal(18,8),
			high Decimal(18,8),
			low Decimal(18,8),
			close Decimal(18,8),
			volume Decimal(18,8)
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, interval, open_time_ms)`, c.opts.Database, c.opts.Table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.sim_trades (
			run_id String,
			symbol LowCardinality(String),
			entry_id String,
			entry_time_ms Int64,
			entry_price Float64,
			exit_time_ms Int64,
			exit_price Float64,
			qty Float64
		) ENGINE = MergeTree
		ORDER BY (run_id, entry_time_ms)`, c.opts.Database),
	}
	for _, stmt := range stmts {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Bars streams an ordered, gapless window of confirmed bars for one
// symbol/timeframe.
func (c *Client) Bars(ctx context.Context, symbol, timeframe string, fromMs, toMs int64) ([]engine.Bar, error) {
	query := fmt.Sprintf(`SELECT open_time_ms, close_time_ms, open, high, low, close, volume
		FROM %s.%s
		WHERE symbol = ? AND interval = ? AND open_time_ms >= ? AND open_time_ms < ?
		ORDER BY open_time_ms`, c.opts.Database, c.opts.Table)

	rows, err := c.conn.Query(ctx, query, symbol, timeframe, uint64(fromMs), uint64(toMs))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []engine.Bar
	for rows.Next() {
		var (
			openTime, closeTime            uint64
			open, high, low, close, volume decimal.Decimal
		)
		if err := rows.Scan(&openTime, &closeTime, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, engine.Bar{
			Symbol:     symbol,
			Timeframe:  timeframe,
			OpenTime:   int64(openTime),
			CloseTime:  int64(closeTime),
			Open:       open.InexactFloat64(),
			High:       high.InexactFloat64(),
			Low:        low.InexactFloat64(),
			Close:      close.InexactFloat64(),
			Volume:     volume.InexactFloat64(),
			Historical: true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	return bars, nil
}

// InsertBars writes confirmed bars through a native batch. Column order
// follows the table definition.
func (c *Client) InsertBars(ctx context.Context, symbol, timeframe string, bars []engine.Bar) error {
	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s.%s", c.opts.Database, c.opts.Table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, b := range bars {
		err := batch.Append(
			symbol,
			timeframe,
			uint64(b.OpenTime),
			uint64(b.CloseTime),
			decimal.NewFromFloat(b.Open),
			decimal.NewFromFloat(b.High),
			decimal.NewFromFloat(b.Low),
			decimal.NewFromFloat(b.Close),
			decimal.NewFromFloat(b.Volume),
		)
		if err != nil {
			return fmt.Errorf("append bar %d: %w", b.OpenTime, err)
		}
	}
	return batch.Send()
}
