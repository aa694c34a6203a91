package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stockbot/backtest"
	"github.com/rustyeddy/stockbot/internal/id"
	"github.com/rustyeddy/stockbot/journal"
	"github.com/rustyeddy/stockbot/market"
	"github.com/rustyeddy/stockbot/notify"
	"github.com/rustyeddy/stockbot/risk"
	"github.com/rustyeddy/stockbot/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay signals against historical bars under risk controls",
	Long: `Backtest replays a signal stream against one or more bar series.

Bars come from CSV files (time,open,high,low,close[,volume]), one per
symbol, given as SYMBOL=path pairs. Signals come either from a signal CSV
(time,symbol,direction,confidence) or from a built-in strategy.

Example:
  stockbot backtest --bars AAPL=aapl.csv --bars MSFT=msft.csv \
      --strategy sma-cross --fast 20 --slow 50 --db ./backtest.sqlite`,
	RunE: runBacktest,
}

var (
	btBars        []string
	btSignalsPath string
	btStrategy    string
	btFast        int
	btSlow        int
	btThreshold   float64
	btBalance     float64
	btRiskPct     float64
	btMaxPos      int
	btStopPct     float64
	btTakePct     float64
	btDailyPct    float64
	btMaxValue    float64
	btTieBreak    string
	btParallel    int
	btDBPath      string
	btTradesCSV   string
	btEquityCSV   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringArrayVarP(&btBars, "bars", "b", nil, "SYMBOL=path to bar CSV (repeatable, required)")
	backtestCmd.Flags().StringVar(&btSignalsPath, "signals", "", "path to signal CSV (time,symbol,direction,confidence)")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "built-in strategy (noop, sma-cross, threshold) when no signal CSV is given")
	backtestCmd.Flags().IntVar(&btFast, "fast", 20, "sma-cross: fast period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 50, "sma-cross: slow period")
	backtestCmd.Flags().Float64Var(&btThreshold, "threshold", 0.01, "threshold: one-bar move fraction")

	backtestCmd.Flags().Float64Var(&btBalance, "balance", 100_000, "starting account balance per symbol")
	backtestCmd.Flags().Float64Var(&btRiskPct, "risk", 0.02, "risk fraction per trade (0.02 = 2%)")
	backtestCmd.Flags().IntVar(&btMaxPos, "max-positions", 5, "maximum simultaneous open positions")
	backtestCmd.Flags().Float64Var(&btStopPct, "stop-pct", 0.05, "stop loss distance as fraction of entry")
	backtestCmd.Flags().Float64Var(&btTakePct, "take-pct", 0.10, "take profit distance as fraction of entry")
	backtestCmd.Flags().Float64Var(&btDailyPct, "daily-loss-pct", 0.03, "daily realized-loss lockout fraction")
	backtestCmd.Flags().Float64Var(&btMaxValue, "max-value", 1_000_000, "maximum total position value")
	backtestCmd.Flags().StringVar(&btTieBreak, "tie-break", "stop-first", "same-bar stop+take resolution (stop-first, take-first)")
	backtestCmd.Flags().IntVar(&btParallel, "parallel", 1, "symbol workers to run concurrently")

	backtestCmd.Flags().StringVarP(&btDBPath, "db", "d", "", "record the run to this SQLite journal")
	backtestCmd.Flags().StringVar(&btTradesCSV, "trades-csv", "", "export the trade ledger to this CSV file")
	backtestCmd.Flags().StringVar(&btEquityCSV, "equity-csv", "", "export the equity curve to this CSV file")

	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	data, err := loadSymbolData()
	if err != nil {
		return err
	}

	cfg := backtest.Config{
		InitialBalance: btBalance,
		Params: risk.Parameters{
			RiskPerTrade:      btRiskPct,
			MaxPositions:      btMaxPos,
			StopLossPct:       btStopPct,
			TakeProfitPct:     btTakePct,
			MaxDailyLossPct:   btDailyPct,
			MaxPortfolioValue: btMaxValue,
		},
	}
	switch btTieBreak {
	case "stop-first":
		cfg.TieBreak = backtest.StopFirst
	case "take-first":
		cfg.TieBreak = backtest.TakeFirst
	default:
		return fmt.Errorf("unknown tie-break %q (want stop-first|take-first)", btTieBreak)
	}

	notifier := &notify.LogNotifier{}
	res, err := backtest.RunPortfolio(cmd.Context(), cfg, data, notifier, btParallel)
	if err != nil {
		return err
	}

	for symbol, serr := range res.Errors {
		fmt.Printf("SKIPPED %s: %v\n", symbol, serr)
	}
	for _, symbol := range sortedKeys(res.PerSymbol) {
		printResult(res.PerSymbol[symbol])
	}
	if len(res.PerSymbol) > 1 && res.Combined != nil {
		printResult(res.Combined)
	}

	return recordRun(res)
}

func loadSymbolData() (map[string]backtest.SymbolData, error) {
	data := make(map[string]backtest.SymbolData, len(btBars))
	for _, pair := range btBars {
		symbol, path, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("bad --bars %q (want SYMBOL=path)", pair)
		}
		series, err := market.LoadSeriesFile(path, symbol)
		if err != nil {
			return nil, err
		}
		data[symbol] = backtest.SymbolData{Series: series}
	}

	if btSignalsPath != "" {
		signals, err := market.LoadSignalsFile(btSignalsPath)
		if err != nil {
			return nil, err
		}
		for symbol, sd := range data {
			var mine []market.Signal
			for _, s := range signals {
				if s.Symbol == symbol || s.Symbol == "" {
					mine = append(mine, s)
				}
			}
			sd.Signals = mine
			data[symbol] = sd
		}
		return data, nil
	}

	if btStrategy == "" {
		return nil, fmt.Errorf("either --signals or --strategy is required")
	}
	for symbol, sd := range data {
		// One strategy instance per symbol: variants carry per-series state.
		strat, err := strategies.ByName(btStrategy, btFast, btSlow, btThreshold)
		if err != nil {
			return nil, err
		}
		sd.Signals = strategies.SignalsFor(strat, sd.Series)
		data[symbol] = sd
	}
	return data, nil
}

func recordRun(res *backtest.PortfolioResult) error {
	runID := id.New()

	if btDBPath != "" {
		j, err := journal.NewSQLite(btDBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		for _, symbol := range sortedKeys(res.PerSymbol) {
			if err := journal.RecordResult(j, runID, res.PerSymbol[symbol]); err != nil {
				return fmt.Errorf("record journal: %w", err)
			}
		}
		fmt.Printf("Run %s recorded to %s\n", runID, btDBPath)
	}

	if btTradesCSV != "" && btEquityCSV != "" {
		j, err := journal.NewCSV(btTradesCSV, btEquityCSV)
		if err != nil {
			return fmt.Errorf("open csv journal: %w", err)
		}
		defer j.Close()
		for _, symbol := range sortedKeys(res.PerSymbol) {
			if err := journal.RecordResult(j, runID, res.PerSymbol[symbol]); err != nil {
				return fmt.Errorf("export csv: %w", err)
			}
		}
		fmt.Printf("Ledger exported to %s\n", btTradesCSV)
	}
	return nil
}
