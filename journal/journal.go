// Package journal persists trade ledgers and equity curves, either to an
// embedded SQLite database or to flat CSV files.
package journal

import (
	"time"

	"github.com/rustyeddy/stockbot/backtest"
	"github.com/rustyeddy/stockbot/internal/id"
)

// TradeRecord is one row of the exported ledger: the flat tabular shape of
// a closed trade.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   int
	PnL        float64
	ReturnPct  float64
	ExitReason string
}

// EquityRecord is one equity-curve observation.
type EquityRecord struct {
	RunID   string
	Time    time.Time
	Balance float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// FromTrade maps a backtest trade into a ledger row, minting the trade ID.
func FromTrade(runID string, t backtest.Trade) TradeRecord {
	return TradeRecord{
		TradeID:    id.New(),
		RunID:      runID,
		Symbol:     t.Symbol,
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		Quantity:   t.Quantity,
		PnL:        t.PnL,
		ReturnPct:  t.ReturnPct,
		ExitReason: string(t.ExitReason),
	}
}

// RecordResult writes a whole backtest result (ledger plus curve) under one
// run ID.
func RecordResult(j Journal, runID string, res *backtest.Result) error {
	for _, t := range res.Trades {
		if err := j.RecordTrade(FromTrade(runID, t)); err != nil {
			return err
		}
	}
	for _, p := range res.Curve {
		if err := j.RecordEquity(EquityRecord{RunID: runID, Time: p.Time, Balance: p.Balance}); err != nil {
			return err
		}
	}
	return nil
}
