package market

import (
	"fmt"
	"time"
)

// Side: +1 long, -1 short
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Opposes reports whether o is the opposite direction of s.
func (s Side) Opposes(o Side) bool {
	return s == -o
}

// Bar is one OHLC candle for a single symbol.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Signal is one directional event from a predictor or strategy.
type Signal struct {
	Time       time.Time
	Symbol     string
	Direction  Side
	Confidence float64
}

// Series is a chronological bar series for one symbol.
type Series struct {
	Symbol string
	Bars   []Bar
}

// DataError marks a malformed bar or signal. It aborts the run for the
// symbol it belongs to, never the whole batch.
type DataError struct {
	Symbol string
	Index  int
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error: %s bar %d: %s", e.Symbol, e.Index, e.Reason)
}

// Validate checks chronological ordering and OHLC sanity. The first bad bar
// is reported as a DataError.
func (s *Series) Validate() error {
	if len(s.Bars) == 0 {
		return &DataError{Symbol: s.Symbol, Index: 0, Reason: "empty series"}
	}

	var prev time.Time
	for i, b := range s.Bars {
		if b.Time.IsZero() {
			return &DataError{Symbol: s.Symbol, Index: i, Reason: "zero timestamp"}
		}
		if i > 0 && !b.Time.After(prev) {
			return &DataError{Symbol: s.Symbol, Index: i, Reason: "out of order timestamp"}
		}
		prev = b.Time

		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return &DataError{Symbol: s.Symbol, Index: i, Reason: "non-positive price"}
		}
		if b.High < b.Low {
			return &DataError{Symbol: s.Symbol, Index: i, Reason: "high below low"}
		}
		if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
			return &DataError{Symbol: s.Symbol, Index: i, Reason: "open/close outside high-low range"}
		}
	}
	return nil
}

// Closes returns the close price of every bar.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}
