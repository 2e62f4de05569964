package clickhouse

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokersim/services/engine"
)

func TestTradeSinkFlushesGzipJSONEachRow(t *testing.T) {
	var (
		gotQuery string
		gotRows  []tradeRow
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		require.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "writer", user)
		assert.Equal(t, "pw", pass)

		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(gz)
		require.NoError(t, err)
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			var row tradeRow
			require.NoError(t, json.Unmarshal([]byte(line), &row))
			gotRows = append(gotRows, row)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewTradeSink(srv.URL, "backtest", "writer", "pw", 100)
	trades := []engine.Trade{
		{EntryID: "e1", EntryTime: 1000, EntryPrice: 100, ExitTime: 2000, ExitPrice: 110, Qty: 1},
		{EntryID: "e2", EntryTime: 3000, EntryPrice: 110, ExitTime: 4000, ExitPrice: 105, Qty: -2},
	}
	for _, tr := range trades {
		require.NoError(t, sink.Add("run-1", "TEST", tr))
	}
	require.NoError(t, sink.Close())

	assert.Equal(t, "INSERT INTO backtest.sim_trades FORMAT JSONEachRow", gotQuery)
	require.Len(t, gotRows, 2)
	assert.Equal(t, "run-1", gotRows[0].RunID)
	assert.Equal(t, "e1", gotRows[0].EntryID)
	assert.Equal(t, 110.0, gotRows[0].ExitPrice)
	assert.Equal(t, -2.0, gotRows[1].Qty)
}

func TestTradeSinkBatchesBySize(t *testing.T) {
	flushes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flushes++
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewTradeSink(srv.URL, "backtest", "w", "p", 2)
	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Add("run-1", "TEST", engine.Trade{EntryID: "e", Qty: 1}))
	}
	require.NoError(t, sink.Close())
	assert.Equal(t, 3, flushes) // 2+2 on size, 1 on close
}

func TestTradeSinkSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Code: 60. Table does not exist", http.StatusNotFound)
	}))
	defer srv.Close()

	sink := NewTradeSink(srv.URL, "backtest", "w", "p", 10)
	require.NoError(t, sink.Add("run-1", "TEST", engine.Trade{EntryID: "e", Qty: 1}))
	err := sink.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
