package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stockbot/market"
)

// Forward-fill: each symbol's last known balance carries over the stamps it
// did not trade on.
func TestCombine_ForwardFill(t *testing.T) {
	t.Parallel()

	a := &Result{
		Symbol:         "AAPL",
		InitialBalance: 100,
		FinalBalance:   110,
		Curve: []EquityPoint{
			{Time: day(1), Balance: 100},
			{Time: day(3), Balance: 110},
		},
	}
	b := &Result{
		Symbol:         "MSFT",
		InitialBalance: 100,
		FinalBalance:   90,
		Curve: []EquityPoint{
			{Time: day(2), Balance: 100},
			{Time: day(4), Balance: 90},
		},
	}

	c := combine(map[string]*Result{"AAPL": a, "MSFT": b})
	require.NotNil(t, c)

	require.Len(t, c.Curve, 4)
	assert.InDelta(t, 200.0, c.Curve[0].Balance, 1e-9) // AAPL 100, MSFT filled 100
	assert.InDelta(t, 200.0, c.Curve[1].Balance, 1e-9)
	assert.InDelta(t, 210.0, c.Curve[2].Balance, 1e-9) // AAPL 110, MSFT 100
	assert.InDelta(t, 200.0, c.Curve[3].Balance, 1e-9) // AAPL filled 110, MSFT 90

	assert.InDelta(t, 200.0, c.InitialBalance, 1e-9)
	assert.InDelta(t, 200.0, c.FinalBalance, 1e-9)
	assert.Zero(t, c.TotalReturn)
	assert.InDelta(t, 10.0/210.0, c.MaxDrawdown, 1e-12)
}

func TestCombine_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, combine(nil))
}

func TestCombine_TradesSortedByExit(t *testing.T) {
	t.Parallel()

	a := &Result{
		InitialBalance: 100, FinalBalance: 100,
		Curve:  []EquityPoint{{Time: day(1), Balance: 100}},
		Trades: []Trade{{Symbol: "AAPL", ExitTime: day(5), PnL: 1}},
	}
	b := &Result{
		InitialBalance: 100, FinalBalance: 100,
		Curve:  []EquityPoint{{Time: day(1), Balance: 100}},
		Trades: []Trade{{Symbol: "MSFT", ExitTime: day(2), PnL: -1}},
	}

	c := combine(map[string]*Result{"AAPL": a, "MSFT": b})
	require.Len(t, c.Trades, 2)
	assert.Equal(t, "MSFT", c.Trades[0].Symbol)
	assert.Equal(t, "AAPL", c.Trades[1].Symbol)
}

// One bad symbol lands in Errors; the others still produce results.
func TestRunPortfolio_IsolatesSymbolErrors(t *testing.T) {
	t.Parallel()

	good := SymbolData{
		Series: series(flatBar(1, 100), flatBar(2, 101)),
	}
	bad := SymbolData{
		Series: &market.Series{Symbol: "BAD", Bars: []market.Bar{
			flatBar(2, 100), flatBar(1, 100), // out of order
		}},
	}

	out, err := RunPortfolio(context.Background(), defaultConfig(), map[string]SymbolData{
		"AAPL": good,
		"BAD":  bad,
	}, nil, 2)
	require.NoError(t, err)

	require.Contains(t, out.Errors, "BAD")
	var derr *market.DataError
	assert.ErrorAs(t, out.Errors["BAD"], &derr)

	require.Contains(t, out.PerSymbol, "AAPL")
	require.NotNil(t, out.Combined)
	assert.InDelta(t, 100_000.0, out.Combined.InitialBalance, 1e-9)
}

func TestRunPortfolio_MergedOrdersSorted(t *testing.T) {
	t.Parallel()

	mk := func(symbol string) SymbolData {
		return SymbolData{
			Series: &market.Series{Symbol: symbol, Bars: []market.Bar{
				{Time: day(1), Open: 100, High: 100, Low: 100, Close: 100},
				{Time: day(2), Open: 98, High: 99, Low: 94, Close: 96},
				{Time: day(3), Open: 97, High: 97, Low: 96, Close: 97},
			}},
			Signals: []market.Signal{{Time: day(1), Symbol: symbol, Direction: market.Long, Confidence: 1}},
		}
	}

	out, err := RunPortfolio(context.Background(), defaultConfig(), map[string]SymbolData{
		"AAPL": mk("AAPL"),
		"MSFT": mk("MSFT"),
		"NVDA": mk("NVDA"),
	}, nil, 3)
	require.NoError(t, err)
	require.Empty(t, out.Errors)

	// Three symbols, an open and a close each.
	require.Len(t, out.Orders, 6)
	for i := 1; i < len(out.Orders); i++ {
		assert.LessOrEqual(t, out.Orders[i-1].ID, out.Orders[i].ID)
	}

	// Per-symbol runs are independent: identical inputs, identical numbers.
	assert.InDelta(t, out.PerSymbol["AAPL"].FinalBalance, out.PerSymbol["MSFT"].FinalBalance, 1e-9)
	assert.InDelta(t, 3*out.PerSymbol["AAPL"].FinalBalance, out.Combined.FinalBalance, 1e-9)
}

func TestRunPortfolio_BadParams(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Params.RiskPerTrade = -1
	_, err := RunPortfolio(context.Background(), cfg, nil, nil, 1)
	assert.Error(t, err)
}
