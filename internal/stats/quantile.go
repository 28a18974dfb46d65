package stats

import (
	"math"

	"github.com/crashla/incident.report/internal/sgo"
)

const (
	newtonMaxIter  = 50
	newtonResidual = 1e-12
	densityFloor   = 1e-100
)

// normalQuantile approximates the standard normal quantile by the rational
// polynomial of Abramowitz & Stegun 26.2.23 (|error| < 4.5e-4), which is
// ample for a Newton starting point.
func normalQuantile(p float64) float64 {
	if p == 0.5 {
		return 0
	}
	// The rational form approximates the lower tail; mirror the upper.
	if p > 0.5 {
		return -normalQuantile(1 - p)
	}
	t := math.Sqrt(-2 * math.Log(p))
	num := 2.515517 + t*(0.802853+t*0.010328)
	den := 1 + t*(1.432788+t*(0.189269+t*0.001308))
	return -(t - num/den)
}

// GammaQuantile returns x such that P(a, x*rate) = p, i.e. the p-quantile
// of a Gamma(a, rate) distribution. Shape and rate must be positive and p
// strictly inside (0, 1).
//
// The initial guess is the Wilson-Hilferty cube-root normal approximation
// to a chi-squared quantile with 2a degrees of freedom; Newton-Raphson
// then refines against P(a, x*rate) - p with the gamma density as the
// derivative.
func GammaQuantile(a, rate, p float64) (float64, error) {
	if a <= 0 {
		return 0, sgo.E(sgo.KindBadParameter, "gamma quantile shape must be positive", "shape", a)
	}
	if rate <= 0 {
		return 0, sgo.E(sgo.KindBadParameter, "gamma quantile rate must be positive", "rate", rate)
	}
	if p <= 0 || p >= 1 {
		return 0, sgo.E(sgo.KindBadParameter, "gamma quantile probability must be in (0,1)", "p", p)
	}

	// Wilson-Hilferty: chi2_nu(p) ~= nu*(1 - 2/(9nu) + z*sqrt(2/(9nu)))^3
	// with nu = 2a; Gamma(a, rate) = chi2_2a / (2*rate).
	nu := 2 * a
	z := normalQuantile(p)
	cube := 1 - 2/(9*nu) + z*math.Sqrt(2/(9*nu))
	// Floor the cubed term so the seed is never non-positive.
	if cube < 0.1 {
		cube = 0.1 // cube^3 floored at 0.001
	}
	x := nu * cube * cube * cube / (2 * rate)

	for i := 0; i < newtonMaxIter; i++ {
		f := RegLowerGamma(a, x*rate) - p
		if math.Abs(f) < newtonResidual {
			break
		}
		// Gamma(a, rate) density at x.
		pdf := math.Exp(a*math.Log(rate) + (a-1)*math.Log(x) - rate*x - LogGamma(a))
		if pdf < densityFloor {
			break
		}
		next := x - f/pdf
		// Damp: never undershoot below one tenth of the current estimate.
		if next < x/10 {
			next = x / 10
		}
		x = next
	}
	return x, nil
}
