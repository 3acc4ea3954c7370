package dash

import "math"

// ewma is an exponentially-weighted moving average with half-life=5
// samples, used to estimate typical manifest-refresh latency (§4.10).
type ewma struct {
	alpha    float64
	estimate float64
	hasValue bool
}

// newEWMA constructs an ewma with the given half-life in samples.
func newEWMA(halfLifeSamples float64) *ewma {
	alpha := 1 - math.Exp(math.Log(0.5)/halfLifeSamples)
	return &ewma{alpha: alpha}
}

// Sample folds a new observation into the estimate.
func (e *ewma) Sample(value float64) {
	if !e.hasValue {
		e.estimate = value
		e.hasValue = true
		return
	}
	e.estimate = e.alpha*value + (1-e.alpha)*e.estimate
}

// Estimate returns the current estimate, or 0 if no sample has been seen.
func (e *ewma) Estimate() float64 {
	return e.estimate
}
