package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/stockbot/broker"
	"github.com/rustyeddy/stockbot/market"
	"github.com/rustyeddy/stockbot/notify"
	"github.com/rustyeddy/stockbot/risk"
)

// SymbolData pairs one symbol's bar series with its signal stream.
type SymbolData struct {
	Series  *market.Series
	Signals []market.Signal
}

// PortfolioResult aggregates independent per-symbol runs. A symbol that
// failed on bad data lands in Errors; the rest of the batch still reports.
type PortfolioResult struct {
	PerSymbol map[string]*Result
	Errors    map[string]error

	// Combined is recomputed from the merged forward-filled equity curve
	// and the concatenated ledger, never from averaging per-symbol ratios.
	Combined *Result

	// Orders is the union of every worker's sublog, in submission order.
	Orders []broker.Order
}

// RunPortfolio backtests each symbol on its own worker with an isolated
// Account and executor, then merges at an explicit aggregation step.
func RunPortfolio(ctx context.Context, cfg Config, data map[string]SymbolData, notifier notify.Notifier, parallelism int) (*PortfolioResult, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if parallelism < 1 {
		parallelism = 1
	}

	type symbolRun struct {
		symbol string
		res    *Result
		orders []broker.Order
		err    error
	}

	symbols := make([]string, 0, len(data))
	for s := range data {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	jobs := make(chan string)
	results := make(chan symbolRun, len(symbols))

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				exec := broker.NewMockExecutor(cfg.InitialBalance)
				run := symbolRun{symbol: symbol}

				eng, err := NewEngine(cfg, exec, notifier)
				if err != nil {
					run.err = err
				} else {
					run.res, run.err = eng.Run(ctx, data[symbol].Series, data[symbol].Signals)
					run.orders = exec.AllOrders()
				}
				results <- run
			}
		}()
	}

	for _, s := range symbols {
		jobs <- s
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := &PortfolioResult{
		PerSymbol: make(map[string]*Result),
		Errors:    make(map[string]error),
	}
	for run := range results {
		if run.err != nil {
			out.Errors[run.symbol] = run.err
			continue
		}
		out.PerSymbol[run.symbol] = run.res
		out.Orders = append(out.Orders, run.orders...)
	}
	sort.Slice(out.Orders, func(i, j int) bool { return out.Orders[i].ID < out.Orders[j].ID })

	out.Combined = combine(out.PerSymbol)
	return out, nil
}

// combine merges per-symbol equity curves over the union of timestamps with
// forward-filled balances, then recomputes portfolio metrics from the
// combined curve and ledger.
func combine(perSymbol map[string]*Result) *Result {
	if len(perSymbol) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(perSymbol))
	stampSet := make(map[time.Time]struct{})
	for s, r := range perSymbol {
		symbols = append(symbols, s)
		for _, p := range r.Curve {
			stampSet[p.Time] = struct{}{}
		}
	}
	sort.Strings(symbols)

	stamps := make([]time.Time, 0, len(stampSet))
	for t := range stampSet {
		stamps = append(stamps, t)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	combined := &Result{Symbol: "PORTFOLIO"}
	var trades []Trade
	var rejected []RejectedCandidate

	idx := make(map[string]int, len(symbols))
	last := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		r := perSymbol[s]
		combined.InitialBalance += r.InitialBalance
		last[s] = r.InitialBalance
		trades = append(trades, r.Trades...)
		rejected = append(rejected, r.Rejected...)
	}

	curve := make([]EquityPoint, 0, len(stamps))
	ddEquity := make([]float64, 0, len(stamps))
	for _, t := range stamps {
		var total float64
		for _, s := range symbols {
			r := perSymbol[s]
			for idx[s] < len(r.Curve) && !r.Curve[idx[s]].Time.After(t) {
				last[s] = r.Curve[idx[s]].Balance
				idx[s]++
			}
			total += last[s]
		}
		curve = append(curve, EquityPoint{Time: t, Balance: total})
		ddEquity = append(ddEquity, total)
	}

	sort.Slice(trades, func(i, j int) bool { return trades[i].ExitTime.Before(trades[j].ExitTime) })

	combined.FinalBalance = curve[len(curve)-1].Balance
	combined.Curve = curve
	combined.Trades = trades
	combined.Rejected = rejected
	combined.MaxDrawdown = risk.MaxDrawdown(ddEquity)
	combined.fillMetrics()
	return combined
}
