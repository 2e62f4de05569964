package clickhouse

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"brokersim/services/engine"
)

// TradeSink writes closed trades over the ClickHouse HTTP interface as
// gzip-compressed JSONEachRow batches.
type TradeSink struct {
	baseURL    string
	database   string
	username   string
	password   string
	httpClient *http.Client
	buffer     []tradeRow
	batchSize  int
}

type tradeRow struct {
	RunID       string  `json:"run_id"`
	Symbol      string  `json:"symbol"`
	EntryID     string  `json:"entry_id"`
	EntryTimeMs int64   `json:"entry_time_ms"`
	EntryPrice  float64 `json:"entry_price"`
	ExitTimeMs  int64   `json:"exit_time_ms"`
	ExitPrice   float64 `json:"exit_price"`
	Qty         float64 `json:"qty"`
}

func NewTradeSink(baseURL, database, username, password string, batchSize int) *TradeSink {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &TradeSink{
		baseURL:   baseURL,
		database:  database,
		username:  username,
		password:  password,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		buffer: make([]tradeRow, 0, batchSize),
	}
}

func (s *TradeSink) Add(runID, symbol string, t engine.Trade) error {
	s.buffer = append(s.buffer, tradeRow{
		RunID:       runID,
		Symbol:      symbol,
		EntryID:     t.EntryID,
		EntryTimeMs: t.EntryTime,
		EntryPrice:  t.EntryPrice,
		ExitTimeMs:  t.ExitTime,
		ExitPrice:   t.ExitPrice,
		Qty:         t.Qty,
	})
	if len(s.buffer) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

func (s *TradeSink) Flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, row := range s.buffer {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal trade: %w", err)
		}
		if _, err := gz.Write(data); err != nil {
			return fmt.Errorf("gzip trade: %w", err)
		}
		if _, err := gz.Write([]byte("\n")); err != nil {
			return fmt.Errorf("gzip trade: %w", err)
		}
	}
	gz.Close()

	query := fmt.Sprintf("INSERT INTO %s.sim_trades FORMAT JSONEachRow", s.database)
	settings := "input_format_null_as_default=1"
	endpoint := fmt.Sprintf("%s/?query=%s&%s", s.baseURL, url.QueryEscape(query), settings)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "gzip")
	req.SetBasicAuth(s.username, s.password)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("insert trades: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("clickhouse error %d: %s", resp.StatusCode, string(body))
	}

	s.buffer = s.buffer[:0]
	return nil
}

func (s *TradeSink) Close() error {
	return s.Flush()
}
