package market

import "math"

// Returns computes close-to-close simple returns: r[i] = c[i+1]/c[i] - 1.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// LogReturns computes close-to-close log returns: r[i] = ln(c[i+1]/c[i]).
// These feed Monte Carlo drift/volatility calibration.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}
