// Package montecarlo estimates Value-at-Risk by simulating Geometric
// Brownian Motion price paths calibrated from historical log-returns. It is
// a standalone batch computation: its output feeds risk-parameter
// calibration, it is never called from the backtest loop.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/montanaflynn/stats"
)

// ErrKind classifies a SimulationError.
type ErrKind string

const (
	InvalidConfidence ErrKind = "invalid_confidence"
	InvalidVolatility ErrKind = "invalid_volatility"
	InvalidConfig     ErrKind = "invalid_config"
)

// SimulationError is a fail-fast configuration or input error.
type SimulationError struct {
	Kind ErrKind
	Msg  string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("monte carlo: %s: %s", e.Kind, e.Msg)
}

// Config drives one simulation. Seed is mandatory and explicit: the same
// seed and inputs always produce bit-identical path sets.
type Config struct {
	Paths        int     `json:"paths" yaml:"paths"`
	Horizon      int     `json:"horizon" yaml:"horizon"` // trading days
	InitialPrice float64 `json:"initial_price" yaml:"initial_price"`
	Drift        float64 `json:"drift" yaml:"drift"` // daily mean log-return
	Vol          float64 `json:"vol" yaml:"vol"`     // daily stdev of log-returns
	Seed         int64   `json:"seed" yaml:"seed"`

	// Workers > 1 computes paths in parallel. Each path derives its own
	// sub-seed from Seed, so results are identical regardless of execution
	// order or worker count.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

func (c Config) Validate() error {
	if c.Paths < 1 {
		return &SimulationError{Kind: InvalidConfig, Msg: "paths must be >= 1"}
	}
	if c.Horizon < 1 {
		return &SimulationError{Kind: InvalidConfig, Msg: "horizon must be >= 1"}
	}
	if c.InitialPrice <= 0 {
		return &SimulationError{Kind: InvalidConfig, Msg: "initial price must be positive"}
	}
	if c.Vol < 0 {
		return &SimulationError{Kind: InvalidVolatility, Msg: fmt.Sprintf("volatility %v must be >= 0", c.Vol)}
	}
	return nil
}

// Calibrate estimates daily drift and volatility from a log-return series.
func Calibrate(logReturns []float64) (drift, vol float64, err error) {
	if len(logReturns) < 2 {
		return 0, 0, &SimulationError{Kind: InvalidConfig, Msg: "need at least 2 log-returns to calibrate"}
	}
	drift, err = stats.Mean(logReturns)
	if err != nil {
		return 0, 0, &SimulationError{Kind: InvalidConfig, Msg: err.Error()}
	}
	vol, err = stats.StandardDeviation(logReturns)
	if err != nil {
		return 0, 0, &SimulationError{Kind: InvalidConfig, Msg: err.Error()}
	}
	return drift, vol, nil
}

// ResultSet holds the simulated paths. Paths[i][t] is the price of path i
// after t trading days; Paths[i][0] is the initial price.
type ResultSet struct {
	Config Config
	Paths  [][]float64
	Finals []float64
}

// Simulate generates Config.Paths GBM paths:
//
//	price[t+1] = price[t] * exp((drift - 0.5*vol^2)*dt + vol*sqrt(dt)*Z)
//
// with dt = one trading day.
func Simulate(cfg Config) (*ResultSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rs := &ResultSet{
		Config: cfg,
		Paths:  make([][]float64, cfg.Paths),
		Finals: make([]float64, cfg.Paths),
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > cfg.Paths {
		workers = cfg.Paths
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rs.Paths[i] = simulatePath(cfg, i)
				rs.Finals[i] = rs.Paths[i][cfg.Horizon]
			}
		}()
	}
	for i := 0; i < cfg.Paths; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return rs, nil
}

// simulatePath generates path i with its own deterministic source, keeping
// output independent of scheduling.
func simulatePath(cfg Config, i int) []float64 {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))

	const dt = 1.0
	step := (cfg.Drift - 0.5*cfg.Vol*cfg.Vol) * dt
	scale := cfg.Vol * math.Sqrt(dt)

	path := make([]float64, cfg.Horizon+1)
	path[0] = cfg.InitialPrice
	for t := 1; t <= cfg.Horizon; t++ {
		z := rng.NormFloat64()
		path[t] = path[t-1] * math.Exp(step+scale*z)
	}
	return path
}

// Losses returns the simulated loss distribution relative to the initial
// price: positive values are losses.
func (rs *ResultSet) Losses() []float64 {
	out := make([]float64, len(rs.Finals))
	for i, f := range rs.Finals {
		out[i] = rs.Config.InitialPrice - f
	}
	return out
}

// VaR returns the Value-at-Risk at confidence c: the c-quantile of the
// simulated loss distribution.
func (rs *ResultSet) VaR(c float64) (float64, error) {
	if c <= 0 || c >= 1 {
		return 0, &SimulationError{Kind: InvalidConfidence, Msg: fmt.Sprintf("confidence %v must be in (0, 1)", c)}
	}
	v, err := stats.Percentile(rs.Losses(), c*100)
	if err != nil {
		return 0, &SimulationError{Kind: InvalidConfig, Msg: err.Error()}
	}
	return v, nil
}

// CVaR returns the mean loss beyond the VaR quantile. With no losses past
// the quantile it degrades to the VaR itself.
func (rs *ResultSet) CVaR(c float64) (float64, error) {
	v, err := rs.VaR(c)
	if err != nil {
		return 0, err
	}

	var sum float64
	var n int
	for _, loss := range rs.Losses() {
		if loss >= v {
			sum += loss
			n++
		}
	}
	if n == 0 {
		return v, nil
	}
	return sum / float64(n), nil
}

// MeanFinal is the average simulated final price.
func (rs *ResultSet) MeanFinal() float64 {
	m, err := stats.Mean(rs.Finals)
	if err != nil {
		return 0
	}
	return m
}
