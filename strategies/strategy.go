// Package strategies defines the signal-generation capability. The real
// predictor is an external collaborator; the variants here are selected by
// name at construction and exist for backtests and demos.
package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/stockbot/market"
)

// Strategy turns price history into at most one signal per bar. History is
// every bar seen so far, newest last; the decision bar is history[len-1].
type Strategy interface {
	Name() string
	OnBar(symbol string, history []market.Bar) *market.Signal
}

var registry = make(map[string]Strategy)

func Register(name string, strat Strategy) {
	registry[name] = strat
}

func Get(name string) Strategy {
	return registry[name]
}

// ByName constructs a strategy variant from its CLI name.
func ByName(name string, fast, slow int, threshold float64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil
	case "sma-cross", "smacross":
		return NewSMACross(fast, slow)
	case "threshold":
		return NewThreshold(threshold)
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, sma-cross, threshold)", name)
	}
}

// SignalsFor replays a strategy over a series and collects its signals, the
// drop-in stand-in for an external predictor's signal stream.
func SignalsFor(strat Strategy, series *market.Series) []market.Signal {
	var out []market.Signal
	for i := range series.Bars {
		if sig := strat.OnBar(series.Symbol, series.Bars[:i+1]); sig != nil {
			out = append(out, *sig)
		}
	}
	return out
}

// Noop never signals; it is the baseline for engine plumbing tests.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(string, []market.Bar) *market.Signal { return nil }
