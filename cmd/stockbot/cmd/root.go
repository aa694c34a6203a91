package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stockbot",
	Short: "A risk-controlled trading bot backtester and simulator",
	Long: `Stockbot replays trading signals against historical price data under
strict account-level risk controls.

It provides tools for:
  - Backtesting signal streams with risk-based position sizing
  - Per-symbol and portfolio-level performance reports
  - Monte Carlo VaR/CVaR estimation from historical returns
  - Trade ledgers exported to SQLite or CSV`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
