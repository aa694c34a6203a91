package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stockbot/market"
)

func validParams() Parameters {
	return Parameters{
		RiskPerTrade:      0.02,
		MaxPositions:      3,
		StopLossPct:       0.05,
		TakeProfitPct:     0.10,
		MaxDailyLossPct:   0.03,
		MaxPortfolioValue: 500_000,
	}
}

func TestParametersValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Parameters)
		field  string
	}{
		{"risk zero", func(p *Parameters) { p.RiskPerTrade = 0 }, "risk_per_trade"},
		{"risk over one", func(p *Parameters) { p.RiskPerTrade = 1.5 }, "risk_per_trade"},
		{"max positions zero", func(p *Parameters) { p.MaxPositions = 0 }, "max_positions"},
		{"stop pct zero", func(p *Parameters) { p.StopLossPct = 0 }, "stop_loss_pct"},
		{"take pct negative", func(p *Parameters) { p.TakeProfitPct = -0.1 }, "take_profit_pct"},
		{"daily loss zero", func(p *Parameters) { p.MaxDailyLossPct = 0 }, "max_daily_loss_pct"},
		{"portfolio value zero", func(p *Parameters) { p.MaxPortfolioValue = 0 }, "max_portfolio_value"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.mutate(&p)

			err := p.Validate()
			require.Error(t, err)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)

			_, err = NewManager(p)
			assert.Error(t, err, "NewManager must fail fast on invalid params")
		})
	}

	assert.NoError(t, validParams().Validate())
	assert.NoError(t, DefaultParameters().Validate())
}

func candidate() Candidate {
	return Candidate{Symbol: "AAPL", Side: market.Long, Quantity: 266, Entry: 150, Stop: 142.50}
}

func view() AccountView {
	return AccountView{Balance: 100_000}
}

func TestValidate_Allows(t *testing.T) {
	t.Parallel()

	m, err := NewManager(validParams())
	require.NoError(t, err)

	d := m.Validate(candidate(), view())
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Violations)
	assert.InDelta(t, 1995.0, d.RiskAmount, 1e-9) // 266 * 7.50
}

func TestValidate_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cand func(*Candidate)
		acct func(*AccountView)
		code string
	}{
		{"risk too high", func(c *Candidate) { c.Quantity = 300 }, nil, "RISK_TOO_HIGH"},
		{"max positions", nil, func(v *AccountView) { v.OpenCount = 3 }, "MAX_POSITIONS"},
		{"position exists", nil, func(v *AccountView) { v.HasPosition = true }, "POSITION_EXISTS"},
		{"exposure too high", nil, func(v *AccountView) { v.Exposure = 480_000 }, "EXPOSURE_TOO_HIGH"},
		{"zero quantity", func(c *Candidate) { c.Quantity = 0 }, nil, "NO_QUANTITY"},
		{"missing stop", func(c *Candidate) { c.Stop = 0 }, nil, "NO_ENTRY_OR_STOP"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewManager(validParams())
			require.NoError(t, err)

			c := candidate()
			if tt.cand != nil {
				tt.cand(&c)
			}
			v := view()
			if tt.acct != nil {
				tt.acct(&v)
			}

			d := m.Validate(c, v)
			require.False(t, d.Allowed)
			codes := make([]string, len(d.Violations))
			for i, vi := range d.Violations {
				codes[i] = vi.Code
			}
			assert.Contains(t, codes, tt.code)
		})
	}
}

// A candidate is rejected the moment open positions reach the cap.
func TestValidate_RejectsAtMaxPositions(t *testing.T) {
	t.Parallel()

	p := validParams()
	p.MaxPositions = 1
	m, err := NewManager(p)
	require.NoError(t, err)

	v := view()
	v.OpenCount = 1
	d := m.Validate(candidate(), v)
	assert.False(t, d.Allowed)
}

func TestDailyLossLockout(t *testing.T) {
	t.Parallel()

	m, err := NewManager(validParams())
	require.NoError(t, err)

	day1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	m.StartNewDay(day1)

	m.RecordClose(-1500)
	m.RecordClose(500) // profits never shrink the loss accumulator
	m.RecordClose(-1600)
	assert.InDelta(t, 3100.0, m.DailyLoss(), 1e-9)

	// 3100 >= 3% of 100k: locked out for every symbol, not just the loser.
	require.True(t, m.DailyLimitBreached(100_000))
	for _, sym := range []string{"AAPL", "MSFT"} {
		c := candidate()
		c.Symbol = sym
		d := m.Validate(c, view())
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason(), "DAILY_LOSS_LIMIT")
	}

	// Only the explicit day boundary unlocks trading.
	m.StartNewDay(day1.AddDate(0, 0, 1))
	assert.Zero(t, m.DailyLoss())
	assert.True(t, m.Validate(candidate(), view()).Allowed)
}

func TestDrawdownTracker(t *testing.T) {
	t.Parallel()

	var tr DrawdownTracker

	tr.Observe(100)
	assert.Zero(t, tr.Max())

	dd := tr.Observe(80)
	assert.InDelta(t, 0.20, dd, 1e-9)
	assert.InDelta(t, 0.20, tr.Max(), 1e-9)

	// Recovery never shrinks the max.
	tr.Observe(95)
	assert.InDelta(t, 0.20, tr.Max(), 1e-9)

	// A new peak, then a shallower dip: max still holds.
	tr.Observe(120)
	tr.Observe(110)
	assert.InDelta(t, 0.20, tr.Max(), 1e-9)
	assert.InDelta(t, 120.0, tr.Peak(), 1e-9)

	// A deeper dip from the higher peak extends it.
	tr.Observe(84)
	assert.InDelta(t, 0.30, tr.Max(), 1e-9)
}

// Extending the curve without a new peak never lowers max drawdown.
func TestMaxDrawdown_Monotone(t *testing.T) {
	t.Parallel()

	curve := []float64{100, 90, 95, 85, 92, 88}
	var tr DrawdownTracker
	prev := 0.0
	for _, e := range curve {
		tr.Observe(e)
		assert.GreaterOrEqual(t, tr.Max(), prev)
		prev = tr.Max()
	}
	assert.InDelta(t, 0.15, tr.Max(), 1e-9)
	assert.InDelta(t, 0.15, MaxDrawdown(curve), 1e-9)
}
