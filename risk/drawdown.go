package risk

// DrawdownTracker keeps the running equity peak and the worst fractional
// decline from it. Max never decreases unless a new peak is set first.
type DrawdownTracker struct {
	peak float64
	max  float64
}

// Observe records one equity point and returns the current drawdown.
func (t *DrawdownTracker) Observe(equity float64) float64 {
	if equity > t.peak {
		t.peak = equity
	}
	if t.peak <= 0 {
		return 0
	}
	dd := (t.peak - equity) / t.peak
	if dd > t.max {
		t.max = dd
	}
	return dd
}

// Peak returns the highest equity seen so far.
func (t *DrawdownTracker) Peak() float64 { return t.peak }

// Max returns the worst drawdown seen so far.
func (t *DrawdownTracker) Max() float64 { return t.max }

// MaxDrawdown computes the worst drawdown over a full equity curve.
func MaxDrawdown(equity []float64) float64 {
	var t DrawdownTracker
	for _, e := range equity {
		t.Observe(e)
	}
	return t.Max()
}
