package risk

import (
	"fmt"
	"time"

	"github.com/rustyeddy/stockbot/market"
)

// Candidate is a proposed trade awaiting a risk decision.
type Candidate struct {
	Symbol   string
	Side     market.Side
	Quantity int
	Entry    float64
	Stop     float64
}

// AccountView is the slice of account state the risk checks need. The
// backtest engine (or a live scheduler) fills it; the manager never reaches
// into account internals itself.
type AccountView struct {
	Balance     float64
	OpenCount   int
	HasPosition bool    // an open position already exists for this symbol
	Exposure    float64 // sum of quantity*entry across open positions
}

type Violation struct {
	Code string
	Msg  string
}

// Decision accumulates every violated check rather than stopping at the
// first, so a rejected-candidate event can explain itself fully.
type Decision struct {
	Allowed    bool
	Violations []Violation

	RiskAmount float64
	RiskPct    float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation codes for logging.
func (d Decision) Reason() string {
	if d.Allowed {
		return "ok"
	}
	out := ""
	for i, v := range d.Violations {
		if i > 0 {
			out += ","
		}
		out += v.Code
	}
	return out
}

// Manager enforces per-trade and account-level risk budgets and tracks the
// daily realized-loss accumulator. It is owned by exactly one run.
type Manager struct {
	params Parameters

	dailyLoss float64 // realized losses since the last day boundary, >= 0
	day       time.Time
}

// NewManager validates params and fails fast on a bad configuration.
func NewManager(params Parameters) (*Manager, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Manager{params: params}, nil
}

func (m *Manager) Params() Parameters { return m.params }

// Validate runs every account-level check against the candidate. A breached
// daily-loss limit rejects all candidates, for every symbol, until the
// driver signals a new day.
func (m *Manager) Validate(c Candidate, acct AccountView) Decision {
	d := Decision{Allowed: true}

	if c.Quantity <= 0 {
		d.add("NO_QUANTITY", "quantity must be positive")
		return d
	}
	if c.Entry <= 0 || c.Stop <= 0 {
		d.add("NO_ENTRY_OR_STOP", "entry and stop must be set")
		return d
	}

	d.RiskAmount = RiskAmount(c.Quantity, c.Entry, c.Stop)
	maxRisk := m.params.RiskPerTrade * acct.Balance
	if acct.Balance > 0 {
		d.RiskPct = d.RiskAmount / acct.Balance
	}

	if d.RiskAmount > maxRisk {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("risk $%.2f exceeds max $%.2f", d.RiskAmount, maxRisk))
	}
	if acct.OpenCount >= m.params.MaxPositions {
		d.add("MAX_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", acct.OpenCount, m.params.MaxPositions))
	}
	if acct.HasPosition {
		d.add("POSITION_EXISTS",
			fmt.Sprintf("position in %s already open", c.Symbol))
	}
	if projected := acct.Exposure + float64(c.Quantity)*c.Entry; projected > m.params.MaxPortfolioValue {
		d.add("EXPOSURE_TOO_HIGH",
			fmt.Sprintf("projected exposure $%.2f exceeds max $%.2f", projected, m.params.MaxPortfolioValue))
	}
	if m.DailyLimitBreached(acct.Balance) {
		d.add("DAILY_LOSS_LIMIT",
			fmt.Sprintf("daily loss $%.2f at or over limit $%.2f; no new trades today",
				m.dailyLoss, m.params.MaxDailyLossPct*acct.Balance))
	}

	return d
}

// RecordClose feeds one realized pnl into the daily-loss accumulator.
func (m *Manager) RecordClose(pnl float64) {
	if pnl < 0 {
		m.dailyLoss += -pnl
	}
}

// DailyLoss returns the realized loss accumulated since the last day
// boundary.
func (m *Manager) DailyLoss() float64 { return m.dailyLoss }

// DailyLimitBreached reports whether new trades are locked out for the rest
// of the day.
func (m *Manager) DailyLimitBreached(balance float64) bool {
	if balance <= 0 {
		return true
	}
	return m.dailyLoss >= m.params.MaxDailyLossPct*balance
}

// StartNewDay resets the daily-loss accumulator. Only the driving clock
// calls this; the accumulator never resets implicitly.
func (m *Manager) StartNewDay(day time.Time) {
	m.day = day
	m.dailyLoss = 0
}

// Day returns the day boundary the accumulator was last reset to.
func (m *Manager) Day() time.Time { return m.day }
