package backtest

import (
	"math"

	"github.com/montanaflynn/stats"
)

// TradingDaysPerYear annualizes the Sharpe ratio.
const TradingDaysPerYear = 252

// Result is the end-of-run performance report for one symbol (or for a
// merged portfolio curve).
type Result struct {
	Symbol         string
	InitialBalance float64
	FinalBalance   float64

	TotalReturn  float64
	TotalTrades  int
	Winners      int
	Losers       int
	WinRate      float64
	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64
	Sharpe       float64
	MaxDrawdown  float64

	Trades   []Trade
	Curve    []EquityPoint
	Rejected []RejectedCandidate
}

func computeResult(symbol string, acct *Account, trades []Trade, rejected []RejectedCandidate) *Result {
	r := &Result{
		Symbol:         symbol,
		InitialBalance: acct.InitialBalance,
		FinalBalance:   acct.Balance,
		Trades:         trades,
		Curve:          acct.Curve,
		Rejected:       rejected,
		MaxDrawdown:    acct.Drawdown.Max(),
	}
	r.fillMetrics()
	return r
}

func (r *Result) fillMetrics() {
	r.TotalReturn = (r.FinalBalance - r.InitialBalance) / r.InitialBalance
	r.TotalTrades = len(r.Trades)

	var grossProfit, grossLoss float64
	for _, t := range r.Trades {
		if t.PnL > 0 {
			r.Winners++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			r.Losers++
			grossLoss += -t.PnL
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.Winners) / float64(r.TotalTrades)
	}
	r.ProfitFactor = profitFactor(grossProfit, grossLoss)
	if r.Winners > 0 {
		r.AvgWin = grossProfit / float64(r.Winners)
	}
	if r.Losers > 0 {
		r.AvgLoss = -grossLoss / float64(r.Losers)
	}
	r.Sharpe = sharpe(balances(r.Curve))
}

// profitFactor is gross profit over gross loss: +Inf with profits and no
// losses, 0 with no profits.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossProfit == 0 {
		return 0
	}
	if grossLoss == 0 {
		return math.Inf(1)
	}
	return grossProfit / grossLoss
}

// sharpe annualizes mean/stdev of the curve's period returns. A flat curve
// has zero variance and is defined as 0, not NaN.
func sharpe(balances []float64) float64 {
	if len(balances) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(balances)-1)
	for i := 1; i < len(balances); i++ {
		if balances[i-1] == 0 {
			return 0
		}
		rets = append(rets, balances[i]/balances[i-1]-1)
	}

	mean, err := stats.Mean(rets)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviation(rets)
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(TradingDaysPerYear)
}

func balances(curve []EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Balance
	}
	return out
}
