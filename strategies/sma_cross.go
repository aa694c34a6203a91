package strategies

import (
	"fmt"

	"github.com/rustyeddy/stockbot/market"
)

// SMACross signals long when the fast moving average crosses above the slow
// one, short when it crosses below. Only the crossing bar signals.
type SMACross struct {
	Fast int
	Slow int

	prevDiff float64
	primed   bool
}

func NewSMACross(fast, slow int) (*SMACross, error) {
	if fast < 1 || slow < 2 || fast >= slow {
		return nil, fmt.Errorf("sma-cross: want 1 <= fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &SMACross{Fast: fast, Slow: slow}, nil
}

func (s *SMACross) Name() string { return fmt.Sprintf("sma-cross(%d,%d)", s.Fast, s.Slow) }

func (s *SMACross) OnBar(symbol string, history []market.Bar) *market.Signal {
	if len(history) < s.Slow {
		return nil
	}

	diff := sma(history, s.Fast) - sma(history, s.Slow)
	defer func() { s.prevDiff = diff; s.primed = true }()

	if !s.primed {
		return nil
	}

	bar := history[len(history)-1]
	switch {
	case s.prevDiff <= 0 && diff > 0:
		return &market.Signal{Time: bar.Time, Symbol: symbol, Direction: market.Long, Confidence: 1}
	case s.prevDiff >= 0 && diff < 0:
		return &market.Signal{Time: bar.Time, Symbol: symbol, Direction: market.Short, Confidence: 1}
	}
	return nil
}

func sma(history []market.Bar, n int) float64 {
	var sum float64
	for _, b := range history[len(history)-n:] {
		sum += b.Close
	}
	return sum / float64(n)
}
