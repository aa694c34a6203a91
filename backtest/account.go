package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/stockbot/market"
	"github.com/rustyeddy/stockbot/risk"
)

// ExitReason explains why a position closed.
type ExitReason string

const (
	ExitStopLoss       ExitReason = "stop_loss"
	ExitTakeProfit     ExitReason = "take_profit"
	ExitOpposingSignal ExitReason = "opposing_signal"
	ExitEndOfData      ExitReason = "end_of_data"
)

// Position is one open holding. At most one per symbol.
type Position struct {
	Symbol   string
	Side     market.Side
	Quantity int
	Entry    float64
	Stop     float64
	Take     float64
	OpenedAt time.Time
}

// Trade is the immutable record of a closed position.
type Trade struct {
	Symbol     string
	Side       market.Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   int
	PnL        float64
	ReturnPct  float64
	ExitReason ExitReason
}

// EquityPoint is one observation on the equity curve.
type EquityPoint struct {
	Time    time.Time
	Balance float64
}

// Account is owned by exactly one backtest run. It is never shared across
// symbol workers; multi-symbol numbers come from the explicit aggregation
// step, not from shared state.
type Account struct {
	InitialBalance float64
	Balance        float64
	RealizedPnL    float64
	Curve          []EquityPoint
	Positions      map[string]*Position
	Drawdown       risk.DrawdownTracker
}

func NewAccount(balance float64, start time.Time) *Account {
	a := &Account{
		InitialBalance: balance,
		Balance:        balance,
		Positions:      make(map[string]*Position),
	}
	a.Curve = append(a.Curve, EquityPoint{Time: start, Balance: balance})
	a.Drawdown.Observe(balance)
	return a
}

// Open records a new position, enforcing one-per-symbol and a stop on the
// loss side of entry.
func (a *Account) Open(p *Position) error {
	if p.Quantity <= 0 {
		return fmt.Errorf("open %s: quantity must be positive", p.Symbol)
	}
	if _, exists := a.Positions[p.Symbol]; exists {
		return fmt.Errorf("open %s: position already exists", p.Symbol)
	}
	switch p.Side {
	case market.Long:
		if p.Stop >= p.Entry {
			return fmt.Errorf("open %s: long stop %.4f must be below entry %.4f", p.Symbol, p.Stop, p.Entry)
		}
	case market.Short:
		if p.Stop <= p.Entry {
			return fmt.Errorf("open %s: short stop %.4f must be above entry %.4f", p.Symbol, p.Stop, p.Entry)
		}
	default:
		return fmt.Errorf("open %s: invalid side %d", p.Symbol, p.Side)
	}

	a.Positions[p.Symbol] = p
	return nil
}

// Close realizes pnl into the balance, appends an equity point and returns
// the immutable Trade.
func (a *Account) Close(symbol string, exitPrice float64, at time.Time, reason ExitReason) (Trade, error) {
	p, ok := a.Positions[symbol]
	if !ok {
		return Trade{}, fmt.Errorf("close %s: no open position", symbol)
	}
	delete(a.Positions, symbol)

	pnl := float64(p.Side) * (exitPrice - p.Entry) * float64(p.Quantity)
	a.Balance += pnl
	a.RealizedPnL += pnl
	a.Curve = append(a.Curve, EquityPoint{Time: at, Balance: a.Balance})
	a.Drawdown.Observe(a.Balance)

	return Trade{
		Symbol:     symbol,
		Side:       p.Side,
		EntryTime:  p.OpenedAt,
		ExitTime:   at,
		EntryPrice: p.Entry,
		ExitPrice:  exitPrice,
		Quantity:   p.Quantity,
		PnL:        pnl,
		ReturnPct:  float64(p.Side) * (exitPrice - p.Entry) / p.Entry,
		ExitReason: reason,
	}, nil
}

// Exposure sums quantity*entry over open positions.
func (a *Account) Exposure() float64 {
	var total float64
	for _, p := range a.Positions {
		total += float64(p.Quantity) * p.Entry
	}
	return total
}

// View projects the state the risk checks need for one candidate symbol.
func (a *Account) View(symbol string) risk.AccountView {
	_, has := a.Positions[symbol]
	return risk.AccountView{
		Balance:     a.Balance,
		OpenCount:   len(a.Positions),
		HasPosition: has,
		Exposure:    a.Exposure(),
	}
}
