package risk

import "fmt"

// Parameters is the immutable risk budget for one run. Invalid values are a
// construction-time error, never a runtime one.
type Parameters struct {
	RiskPerTrade      float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	MaxPositions      int     `json:"max_positions" yaml:"max_positions"`
	StopLossPct       float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct     float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	MaxDailyLossPct   float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxPortfolioValue float64 `json:"max_portfolio_value" yaml:"max_portfolio_value"`
}

// ConfigError reports an invalid Parameters field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("risk config: %s %s", e.Field, e.Reason)
}

// Validate checks every field and returns the first violation.
func (p Parameters) Validate() error {
	if p.RiskPerTrade <= 0 || p.RiskPerTrade > 1 {
		return &ConfigError{Field: "risk_per_trade", Reason: "must be in (0, 1]"}
	}
	if p.MaxPositions < 1 {
		return &ConfigError{Field: "max_positions", Reason: "must be >= 1"}
	}
	if p.StopLossPct <= 0 {
		return &ConfigError{Field: "stop_loss_pct", Reason: "must be > 0"}
	}
	if p.TakeProfitPct <= 0 {
		return &ConfigError{Field: "take_profit_pct", Reason: "must be > 0"}
	}
	if p.MaxDailyLossPct <= 0 || p.MaxDailyLossPct > 1 {
		return &ConfigError{Field: "max_daily_loss_pct", Reason: "must be in (0, 1]"}
	}
	if p.MaxPortfolioValue <= 0 {
		return &ConfigError{Field: "max_portfolio_value", Reason: "must be > 0"}
	}
	return nil
}

// DefaultParameters mirrors a conservative retail setup: 2% risk per trade,
// 5% stop, 10% target.
func DefaultParameters() Parameters {
	return Parameters{
		RiskPerTrade:      0.02,
		MaxPositions:      5,
		StopLossPct:       0.05,
		TakeProfitPct:     0.10,
		MaxDailyLossPct:   0.03,
		MaxPortfolioValue: 1_000_000,
	}
}
