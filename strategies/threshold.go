package strategies

import (
	"fmt"

	"github.com/rustyeddy/stockbot/market"
)

// Threshold signals on a one-bar move beyond a fractional threshold: long
// after an up move, short after a down move. It is the simplest momentum
// stand-in for an external predictor.
type Threshold struct {
	Pct float64
}

func NewThreshold(pct float64) (*Threshold, error) {
	if pct <= 0 {
		return nil, fmt.Errorf("threshold: pct must be positive, got %v", pct)
	}
	return &Threshold{Pct: pct}, nil
}

func (t *Threshold) Name() string { return fmt.Sprintf("threshold(%.4f)", t.Pct) }

func (t *Threshold) OnBar(symbol string, history []market.Bar) *market.Signal {
	if len(history) < 2 {
		return nil
	}

	prev := history[len(history)-2]
	bar := history[len(history)-1]
	change := bar.Close/prev.Close - 1

	switch {
	case change >= t.Pct:
		return &market.Signal{Time: bar.Time, Symbol: symbol, Direction: market.Long, Confidence: change / t.Pct}
	case change <= -t.Pct:
		return &market.Signal{Time: bar.Time, Symbol: symbol, Direction: market.Short, Confidence: -change / t.Pct}
	}
	return nil
}
