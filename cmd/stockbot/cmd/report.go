package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/stockbot/backtest"
)

// printResult renders one result in the classic fixed-width report layout.
func printResult(r *backtest.Result) {
	line := strings.Repeat("=", 60)

	fmt.Println()
	fmt.Println(line)
	fmt.Printf("BACKTEST RESULTS: %s\n", r.Symbol)
	fmt.Println(line)
	fmt.Printf("Initial Balance:     $%.2f\n", r.InitialBalance)
	fmt.Printf("Final Balance:       $%.2f\n", r.FinalBalance)
	fmt.Printf("Total Return:        %.2f%%\n", r.TotalReturn*100)
	fmt.Println()
	fmt.Printf("Total Trades:        %d\n", r.TotalTrades)
	fmt.Printf("Winning Trades:      %d\n", r.Winners)
	fmt.Printf("Losing Trades:       %d\n", r.Losers)
	fmt.Printf("Win Rate:            %.2f%%\n", r.WinRate*100)
	fmt.Println()
	fmt.Printf("Avg Win:             $%.2f\n", r.AvgWin)
	fmt.Printf("Avg Loss:            $%.2f\n", r.AvgLoss)
	fmt.Printf("Profit Factor:       %s\n", fmtProfitFactor(r.ProfitFactor))
	fmt.Printf("Sharpe Ratio:        %.2f\n", r.Sharpe)
	fmt.Printf("Max Drawdown:        %.2f%%\n", r.MaxDrawdown*100)
	if len(r.Rejected) > 0 {
		fmt.Printf("Rejected Signals:    %d\n", len(r.Rejected))
	}
	fmt.Println(line)

	printTopTrades(r)
}

func printTopTrades(r *backtest.Result) {
	if len(r.Trades) == 0 {
		return
	}

	trades := make([]backtest.Trade, len(r.Trades))
	copy(trades, r.Trades)
	sort.Slice(trades, func(i, j int) bool { return trades[i].PnL > trades[j].PnL })

	n := 5
	if len(trades) < n {
		n = len(trades)
	}

	fmt.Println("TOP TRADES:")
	for _, t := range trades[:n] {
		fmt.Printf("  %-6s %s  %4d @ %.2f -> %.2f  pnl %+.2f (%s)\n",
			t.Symbol, t.ExitTime.Format("2006-01-02"), t.Quantity,
			t.EntryPrice, t.ExitPrice, t.PnL, t.ExitReason)
	}
}

func fmtProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf (no losing trades)"
	}
	return fmt.Sprintf("%.2f", pf)
}

func sortedKeys(m map[string]*backtest.Result) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
