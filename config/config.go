package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/stockbot/risk"
)

// Config is the complete bot configuration.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Risk       risk.Parameters  `json:"risk" yaml:"risk"`
	Backtest   BacktestConfig   `json:"backtest" yaml:"backtest"`
	MonteCarlo MonteCarloConfig `json:"montecarlo" yaml:"montecarlo"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Alpaca     AlpacaConfig     `json:"alpaca,omitempty" yaml:"alpaca,omitempty"`
}

type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

type BacktestConfig struct {
	// TieBreak decides a bar whose range crosses both stop and take:
	// "stop-first" (default, conservative) or "take-first".
	TieBreak    string `json:"tie_break" yaml:"tie_break"`
	Parallelism int    `json:"parallelism" yaml:"parallelism"`
}

type MonteCarloConfig struct {
	Paths      int     `json:"paths" yaml:"paths"`
	Horizon    int     `json:"horizon" yaml:"horizon"`
	Seed       int64   `json:"seed" yaml:"seed"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// AlpacaConfig identifies the live broker account. The secret key is never
// stored in the file; it comes from the APCA_API_SECRET_KEY environment
// variable.
type AlpacaConfig struct {
	KeyID string `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	Paper bool   `json:"paper" yaml:"paper"`
}

// LoadFromFile loads configuration from a YAML or JSON file and validates
// it. Invalid configuration fails here, before any simulation runs.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the config as YAML (or JSON for .json paths).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	switch c.Backtest.TieBreak {
	case "", "stop-first", "take-first":
	default:
		return fmt.Errorf("backtest.tie_break must be 'stop-first' or 'take-first'")
	}
	if c.Backtest.Parallelism < 0 {
		return fmt.Errorf("backtest.parallelism must be >= 0")
	}
	if c.MonteCarlo.Paths < 1 {
		return fmt.Errorf("montecarlo.paths must be >= 1")
	}
	if c.MonteCarlo.Horizon < 1 {
		return fmt.Errorf("montecarlo.horizon must be >= 1")
	}
	if c.MonteCarlo.Confidence <= 0 || c.MonteCarlo.Confidence >= 1 {
		return fmt.Errorf("montecarlo.confidence must be in (0, 1)")
	}
	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a runnable configuration with conservative risk limits.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Balance:  100_000,
		},
		Risk: risk.DefaultParameters(),
		Backtest: BacktestConfig{
			TieBreak:    "stop-first",
			Parallelism: 1,
		},
		MonteCarlo: MonteCarloConfig{
			Paths:      10_000,
			Horizon:    252,
			Seed:       42,
			Confidence: 0.95,
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
	}
}
