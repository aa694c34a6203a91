// Package backtest replays a price series against a signal stream, driving
// the risk manager and a mock executor bar by bar to produce a trade ledger
// and performance report.
package backtest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/stockbot/broker"
	"github.com/rustyeddy/stockbot/market"
	"github.com/rustyeddy/stockbot/notify"
	"github.com/rustyeddy/stockbot/risk"
)

// TieBreak decides the exit when a single bar's range crosses both the stop
// and the take level (gap or wide-range bar). The favorable outcome is never
// assumed implicitly.
type TieBreak int

const (
	// StopFirst is the conservative default: count the bar as a stop-out.
	StopFirst TieBreak = iota
	TakeFirst
)

func (tb TieBreak) String() string {
	if tb == TakeFirst {
		return "take-first"
	}
	return "stop-first"
}

// Config drives one backtest run.
type Config struct {
	InitialBalance float64
	Params         risk.Parameters
	TieBreak       TieBreak
}

// RejectedCandidate is the observability record for a signal the risk
// checks turned away. Rejections never fail the run.
type RejectedCandidate struct {
	Time       time.Time
	Symbol     string
	Side       market.Side
	Quantity   int
	Entry      float64
	Violations []risk.Violation
}

// Engine is the per-symbol state machine: FLAT until a validated signal
// opens a position, OPEN until a stop, take, opposing signal or the end of
// data closes it.
type Engine struct {
	cfg      Config
	rm       *risk.Manager
	exec     broker.Executor
	notifier notify.Notifier

	acct     *Account
	trades   []Trade
	rejected []RejectedCandidate
}

// NewEngine validates the configuration and wires the collaborators. A nil
// notifier falls back to a no-op sink.
func NewEngine(cfg Config, exec broker.Executor, notifier notify.Notifier) (*Engine, error) {
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("backtest: initial balance must be positive")
	}
	if exec == nil {
		return nil, fmt.Errorf("backtest: executor is required")
	}
	rm, err := risk.NewManager(cfg.Params)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{cfg: cfg, rm: rm, exec: exec, notifier: notifier}, nil
}

// Run replays the series against the signal stream and computes the report.
// A malformed series aborts this run only; the caller decides whether other
// symbols continue.
func (e *Engine) Run(ctx context.Context, series *market.Series, signals []market.Signal) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	e.acct = NewAccount(e.cfg.InitialBalance, series.Bars[0].Time)
	e.rm.StartNewDay(dayOf(series.Bars[0].Time))

	sigIdx := 0
	var prevDay time.Time

	for i, bar := range series.Bars {
		day := dayOf(bar.Time)
		if !prevDay.IsZero() && day.After(prevDay) {
			// Explicit day boundary from the driving clock; the daily-loss
			// accumulator never resets on its own.
			e.rm.StartNewDay(day)
		}
		prevDay = day

		// Exits are handled before any new entry for this bar.
		if pos, ok := e.acct.Positions[series.Symbol]; ok {
			if exitPrice, reason, hit := checkExit(pos, bar, e.cfg.TieBreak); hit {
				if err := e.closePosition(ctx, series.Symbol, exitPrice, bar.Time, reason); err != nil {
					return nil, err
				}
			}
		}

		// Consume every signal stamped at or before this bar.
		for sigIdx < len(signals) && !signals[sigIdx].Time.After(bar.Time) {
			sig := signals[sigIdx]
			sigIdx++
			if sig.Symbol != "" && sig.Symbol != series.Symbol {
				continue
			}
			if err := e.onSignal(ctx, series.Symbol, sig, bar); err != nil {
				return nil, err
			}
		}

		// Force-close anything still open on the final bar.
		if i == len(series.Bars)-1 {
			if _, ok := e.acct.Positions[series.Symbol]; ok {
				if err := e.closePosition(ctx, series.Symbol, bar.Close, bar.Time, ExitEndOfData); err != nil {
					return nil, err
				}
			}
		}
	}

	res := computeResult(series.Symbol, e.acct, e.trades, e.rejected)
	e.notifier.Notify(ctx, notify.Event{
		Kind:   notify.KindRunComplete,
		Time:   series.Bars[len(series.Bars)-1].Time,
		Symbol: series.Symbol,
		Text:   fmt.Sprintf("backtest complete: %d trades, return %.2f%%", res.TotalTrades, res.TotalReturn*100),
	})
	return res, nil
}

// onSignal applies one signal at the current bar.
func (e *Engine) onSignal(ctx context.Context, symbol string, sig market.Signal, bar market.Bar) error {
	if pos, ok := e.acct.Positions[symbol]; ok {
		if pos.Side.Opposes(sig.Direction) {
			// Opposing signal flattens at the bar close. Re-entry waits for
			// a later signal rather than flipping within the same bar.
			return e.closePosition(ctx, symbol, bar.Close, bar.Time, ExitOpposingSignal)
		}
		return nil // same-direction signal while open is a no-op
	}

	entry := bar.Close
	stop := risk.StopLoss(entry, e.cfg.Params.StopLossPct, sig.Direction)
	take := risk.TakeProfit(entry, e.cfg.Params.TakeProfitPct, sig.Direction)
	qty := risk.SizePosition(entry, stop, e.acct.Balance, e.cfg.Params.RiskPerTrade)

	cand := risk.Candidate{
		Symbol:   symbol,
		Side:     sig.Direction,
		Quantity: qty,
		Entry:    entry,
		Stop:     stop,
	}
	dec := e.rm.Validate(cand, e.acct.View(symbol))
	if !dec.Allowed {
		e.reject(ctx, bar.Time, cand, dec)
		return nil
	}

	side := broker.Buy
	if sig.Direction == market.Short {
		side = broker.Sell
	}
	order, err := e.exec.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    entry,
		Time:     bar.Time,
	})
	if err != nil {
		return fmt.Errorf("backtest %s: place order: %w", symbol, err)
	}

	if err := e.acct.Open(&Position{
		Symbol:   symbol,
		Side:     sig.Direction,
		Quantity: qty,
		Entry:    order.Price,
		Stop:     stop,
		Take:     take,
		OpenedAt: bar.Time,
	}); err != nil {
		return err
	}

	e.notifier.Notify(ctx, notify.Event{
		Kind:   notify.KindFill,
		Time:   bar.Time,
		Symbol: symbol,
		Text:   fmt.Sprintf("opened %s %d @ %.2f", sig.Direction, qty, order.Price),
		Fields: map[string]string{
			"stop": strconv.FormatFloat(stop, 'f', 2, 64),
			"take": strconv.FormatFloat(take, 'f', 2, 64),
		},
	})
	return nil
}

func (e *Engine) closePosition(ctx context.Context, symbol string, exitPrice float64, at time.Time, reason ExitReason) error {
	pos := e.acct.Positions[symbol]
	side := broker.Sell
	if pos.Side == market.Short {
		side = broker.Buy
	}
	if _, err := e.exec.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: pos.Quantity,
		Price:    exitPrice,
		Time:     at,
	}); err != nil {
		return fmt.Errorf("backtest %s: close order: %w", symbol, err)
	}

	trade, err := e.acct.Close(symbol, exitPrice, at, reason)
	if err != nil {
		return err
	}
	e.trades = append(e.trades, trade)
	e.rm.RecordClose(trade.PnL)

	if m, ok := e.exec.(*broker.MockExecutor); ok {
		m.SetSnapshot(broker.AccountSnapshot{
			Balance:       e.acct.Balance,
			Equity:        e.acct.Balance,
			OpenPositions: len(e.acct.Positions),
		})
	}

	e.notifier.Notify(ctx, notify.Event{
		Kind:   notify.KindFill,
		Time:   at,
		Symbol: symbol,
		Text:   fmt.Sprintf("closed %d @ %.2f (%s) pnl %.2f", trade.Quantity, exitPrice, reason, trade.PnL),
	})

	if e.rm.DailyLimitBreached(e.acct.Balance) {
		e.notifier.Notify(ctx, notify.Event{
			Kind:   notify.KindRiskBreach,
			Time:   at,
			Symbol: symbol,
			Text:   fmt.Sprintf("daily loss limit hit ($%.2f); trading locked until next day", e.rm.DailyLoss()),
		})
	}
	return nil
}

func (e *Engine) reject(ctx context.Context, at time.Time, cand risk.Candidate, dec risk.Decision) {
	e.rejected = append(e.rejected, RejectedCandidate{
		Time:       at,
		Symbol:     cand.Symbol,
		Side:       cand.Side,
		Quantity:   cand.Quantity,
		Entry:      cand.Entry,
		Violations: dec.Violations,
	})
	e.notifier.Notify(ctx, notify.Event{
		Kind:   notify.KindRiskBreach,
		Time:   at,
		Symbol: cand.Symbol,
		Text:   fmt.Sprintf("candidate rejected: %s", dec.Reason()),
	})
}

// checkExit models intra-bar stop/take hits. When both levels sit inside
// the bar's range the configured tie-break decides; the default treats the
// bar as a stop-out.
func checkExit(p *Position, bar market.Bar, tb TieBreak) (exitPrice float64, reason ExitReason, hit bool) {
	var stopHit, takeHit bool
	switch p.Side {
	case market.Long:
		stopHit = bar.Low <= p.Stop
		takeHit = bar.High >= p.Take
	case market.Short:
		stopHit = bar.High >= p.Stop
		takeHit = bar.Low <= p.Take
	}

	switch {
	case stopHit && takeHit:
		if tb == TakeFirst {
			return p.Take, ExitTakeProfit, true
		}
		return p.Stop, ExitStopLoss, true
	case stopHit:
		return p.Stop, ExitStopLoss, true
	case takeHit:
		return p.Take, ExitTakeProfit, true
	}
	return 0, "", false
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
