package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadCSV reads bars from a CSV file with columns
// timestamp_ms,open,high,low,close,volume (header row optional). Files
// exported from spreadsheets may carry a UTF BOM; the reader strips it.
func LoadCSV(path, symbol, timeframe string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bomAware := transform.NewReader(f, unicode.BOMOverride(transform.Nop))
	r := csv.NewReader(bomAware)
	r.FieldsPerRecord = -1

	var bars []Bar
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", path, err)
		}
		if len(rec) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			// Header row or junk line.
			continue
		}
		vals := make([]float64, 5)
		bad := false
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				bad = true
				break
			}
			vals[i] = v
		}
		if bad {
			continue
		}
		bars = append(bars, Bar{
			Symbol:     symbol,
			Timeframe:  timeframe,
			OpenTime:   ts,
			Open:       vals[0],
			High:       vals[1],
			Low:        vals[2],
			Close:      vals[3],
			Volume:     vals[4],
			Historical: true,
		})
	}

	// Close times come from the observed step; a single lone bar assumes one
	// minute.
	step := int64(60_000)
	if len(bars) >= 2 {
		step = bars[1].OpenTime - bars[0].OpenTime
	}
	for i := range bars {
		bars[i].CloseTime = bars[i].OpenTime + step
	}
	return bars, nil
}
