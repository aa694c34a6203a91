package risk

import (
	"math"

	"github.com/rustyeddy/stockbot/market"
)

// SizePosition returns the whole-share quantity that risks at most
// riskFraction of balance if the stop is hit:
//
//	floor(riskFraction * balance / |entry - stop|)
//
// It returns 0 when the price risk is zero or the balance is not positive,
// so it never divides by zero.
func SizePosition(entry, stop, balance, riskFraction float64) int {
	priceRisk := math.Abs(entry - stop)
	if priceRisk == 0 || balance <= 0 || riskFraction <= 0 {
		return 0
	}
	return int(math.Floor(riskFraction * balance / priceRisk))
}

// StopLoss places the stop pct below entry for longs, pct above for shorts.
func StopLoss(entry, pct float64, side market.Side) float64 {
	if side == market.Short {
		return entry * (1 + pct)
	}
	return entry * (1 - pct)
}

// TakeProfit places the target pct above entry for longs, pct below for
// shorts.
func TakeProfit(entry, pct float64, side market.Side) float64 {
	if side == market.Short {
		return entry * (1 - pct)
	}
	return entry * (1 + pct)
}

// RiskAmount is the dollar loss if the stop is hit.
func RiskAmount(quantity int, entry, stop float64) float64 {
	return float64(quantity) * math.Abs(entry-stop)
}
