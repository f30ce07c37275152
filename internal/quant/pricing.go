package quant

import "math"

// TauFloor is the minimum effective time-to-expiry, in seconds, used to
// prevent division by zero in the pricing kernels below.
const TauFloor = 0.001

// D2 computes the Black-Scholes-style d2 term for a binary Up/Down
// contract: spot S, strike K, per-second volatility sigma, effective
// time-to-expiry tau (seconds). Callers must floor tau and sigma before
// calling; D2 does not re-floor its inputs.
func D2(s, k, sigma, tau float64) float64 {
	return (math.Log(s/k) - 0.5*sigma*sigma*tau) / (sigma * math.Sqrt(tau))
}

// PFairUp is the risk-neutral probability that the contract settles Up:
// Phi(d2).
func PFairUp(d2 float64) float64 {
	return Phi(d2)
}

// PFairDown is the complement of PFairUp.
func PFairDown(pFairUp float64) float64 {
	return 1 - pFairUp
}

// Z is the drift-free signal-to-noise ratio: ln(S/K) / (sigma*sqrt(tau)).
// Positive z favors Up, negative favors Down.
func Z(s, k, sigma, tau float64) float64 {
	return math.Log(s/k) / (sigma * math.Sqrt(tau))
}

// DeltaBinary is the probability sensitivity per unit price: the rate of
// change of PFairUp with respect to spot.
func DeltaBinary(d2, s, sigma, tau float64) float64 {
	return phi(d2) / (s * sigma * math.Sqrt(tau))
}

// OracleBasis adjusts the raw oracle price and nominal time-to-expiry for
// clock uncertainty between the oracle and venue feeds. deltaOracleS is a
// configured constant (default 2.0s); beta is a configured price offset
// (default 0).
func OracleBasis(rawS, beta, nominalTauS, deltaOracleS float64) (sEff, tauEff float64) {
	sEff = rawS + beta
	tauEff = nominalTauS + deltaOracleS
	if tauEff < TauFloor {
		tauEff = TauFloor
	}
	return sEff, tauEff
}

// FloorTau clamps tau at TauFloor.
func FloorTau(tau float64) float64 {
	if tau < TauFloor {
		return TauFloor
	}
	return tau
}

// SigmaFloorPerSec converts an annualized volatility floor into the
// equivalent per-second floor, assuming secondsPerYear seconds in a year.
func SigmaFloorPerSec(sigmaFloorAnnual, secondsPerYear float64) float64 {
	return sigmaFloorAnnual / math.Sqrt(secondsPerYear)
}
