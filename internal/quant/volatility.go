package quant

import "math"

const sampleIntervalMs = 1000

// VolatilityEstimator computes 1-second-sampled EWMA realized volatility
// from a stream of oracle trades. It is not safe for concurrent use: per
// spec.md §5 it is owned exclusively by the engine task and mutated only
// from oracle-trade events.
type VolatilityEstimator struct {
	lambda      float64
	sigmaFloor  float64
	minSamples  int

	sigmaSq         float64
	sampleCount     int
	lastSampleTsMs  int64
	lastSamplePrice float64
	haveLastSample  bool

	cachedSigma   float64
	cachedAtMs    int64
	haveCache     bool
}

// NewVolatilityEstimator builds an estimator with the given EWMA decay
// (default 0.94), per-second floor (see SigmaFloorPerSec), and minimum
// sample count required before readings are considered valid (default 10).
func NewVolatilityEstimator(lambda, sigmaFloorPerSec float64, minSamples int) *VolatilityEstimator {
	return &VolatilityEstimator{
		lambda:     lambda,
		sigmaFloor: sigmaFloorPerSec,
		minSamples: minSamples,
	}
}

// OnTrade samples a new oracle trade. Samples are only taken at least 1s
// apart; trades arriving sooner are ignored for volatility purposes (they
// still feed VWAP/regime independently).
func (v *VolatilityEstimator) OnTrade(price float64, tsMs int64) {
	if !v.haveLastSample {
		v.lastSampleTsMs = tsMs
		v.lastSamplePrice = price
		v.haveLastSample = true
		return
	}

	dtMs := tsMs - v.lastSampleTsMs
	if dtMs < sampleIntervalMs {
		return
	}

	dtS := float64(dtMs) / 1000.0
	if price <= 0 || v.lastSamplePrice <= 0 || dtS <= 0 {
		v.lastSampleTsMs = tsMs
		v.lastSamplePrice = price
		return
	}

	r := math.Log(price / v.lastSamplePrice)
	rSqPerSec := (r * r) / dtS

	v.sigmaSq = v.lambda*v.sigmaSq + (1-v.lambda)*rSqPerSec
	v.sampleCount++
	v.lastSampleTsMs = tsMs
	v.lastSamplePrice = price
}

// Sigma returns the per-second realized volatility, floored at sigmaFloor,
// recomputed at most once per second; between recomputes the cached value
// is returned.
func (v *VolatilityEstimator) Sigma(nowMs int64) float64 {
	if v.haveCache && nowMs-v.cachedAtMs < sampleIntervalMs {
		return v.cachedSigma
	}

	sigma := math.Sqrt(math.Max(v.sigmaSq, 0))
	if sigma < v.sigmaFloor {
		sigma = v.sigmaFloor
	}

	v.cachedSigma = sigma
	v.cachedAtMs = nowMs
	v.haveCache = true
	return sigma
}

// SampleCount returns the number of fresh EWMA samples taken so far.
func (v *VolatilityEstimator) SampleCount() int {
	return v.sampleCount
}

// WarmedUp reports whether enough samples exist for readings to be valid.
func (v *VolatilityEstimator) WarmedUp() bool {
	return v.sampleCount >= v.minSamples
}
