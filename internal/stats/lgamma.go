// Package stats implements the numerical engine behind the incident-rate
// estimates: a log-gamma function, the regularized lower incomplete gamma
// function, a gamma quantile solver, and the Jeffreys-prior Poisson rate
// interval built on top of them.
//
// Accuracy is targeted at the shapes this system actually produces
// (k + 0.5 for small non-negative counts k, including accumulated
// fractional fault weights) with arbitrary positive rate. This is not a
// general statistics library.
package stats

import "math"

// Lanczos approximation, g=7, nine coefficients.
var lanczos = [9]float64{
	0.99999999999980993,
	676.5203681218851,
	-1259.1392167224028,
	771.32342877765313,
	-176.61502916214059,
	12.507343278686905,
	-0.13857109526572012,
	9.9843695780195716e-6,
	1.5056327351493116e-7,
}

const halfLogTwoPi = 0.91893853320467274178 // ln(2*pi)/2

// LogGamma returns ln|Gamma(x)|. For x < 0.5 it applies the reflection
// formula ln(pi / sin(pi*x)) - LogGamma(1-x); otherwise it evaluates the
// Lanczos series. Behaviour at non-positive integers is unspecified.
func LogGamma(x float64) float64 {
	if x < 0.5 {
		return math.Log(math.Pi/math.Sin(math.Pi*x)) - LogGamma(1-x)
	}
	z := x - 1
	a := lanczos[0]
	for i := 1; i < len(lanczos); i++ {
		a += lanczos[i] / (z + float64(i))
	}
	t := z + 7.5 // z + g + 0.5
	return halfLogTwoPi + (z+0.5)*math.Log(t) - t + math.Log(a)
}
