package engine

import (
	"errors"
	"fmt"
	"time"
)

// Recoverable rejections. The affected order is rejected and the run continues.
var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInsufficientMargin = errors.New("insufficient margin")
)

// FaultError is fatal: the strategy produced an unrecoverable value during an
// evaluation. The run halts at the offending bar and is not retried.
type FaultError struct {
	BarIndex int
	Time     int64
	Err      error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("strategy fault at bar %d (%s): %v",
		e.BarIndex, time.UnixMilli(e.Time).UTC().Format(time.RFC3339), e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// FeedGapError is fatal: bar times went backwards or a bar is missing, so the
// engine's ordering guarantees cannot be upheld.
type FeedGapError struct {
	Symbol    string
	PrevClose int64
	NextOpen  int64
}

func (e *FeedGapError) Error() string {
	return fmt.Sprintf("feed gap on %s: previous bar closed at %d, next opens at %d",
		e.Symbol, e.PrevClose, e.NextOpen)
}
