package stats

import "math"

const (
	// igammaEps is the relative tolerance for both the power series and
	// the continued fraction.
	igammaEps = 1e-14
	// igammaMaxIter caps both expansions so every call terminates.
	igammaMaxIter = 200
	// lentzFloor guards the modified Lentz recurrence against near-zero
	// denominators.
	lentzFloor = 1e-30
)

// RegLowerGamma returns P(a, x), the regularized lower incomplete gamma
// function, for shape a > 0 and x >= 0.
//
// For x < a+1 the convergent power series is used; for x >= a+1 the
// complement Q(a, x) is evaluated by a modified Lentz continued fraction
// and 1-Q returned. The split is required for stability: the series
// converges slowly for large x and the continued fraction misbehaves for
// small x.
func RegLowerGamma(a, x float64) float64 {
	if x == 0 {
		return 0
	}
	if x < a+1 {
		return lowerSeries(a, x)
	}
	return 1 - upperContinuedFraction(a, x)
}

// lowerSeries evaluates P(a, x) by the power series
// x^a e^-x / Gamma(a) * sum_n x^n / (a(a+1)...(a+n)).
func lowerSeries(a, x float64) float64 {
	term := 1 / a
	sum := term
	for n := 1; n <= igammaMaxIter; n++ {
		term *= x / (a + float64(n))
		sum += term
		if math.Abs(term) < math.Abs(sum)*igammaEps {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-LogGamma(a))
}

// upperContinuedFraction evaluates Q(a, x) = 1 - P(a, x) by the modified
// Lentz method.
func upperContinuedFraction(a, x float64) float64 {
	b := x + 1 - a
	c := 1 / lentzFloor
	d := 1 / b
	h := d
	for i := 1; i <= igammaMaxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < lentzFloor {
			d = lentzFloor
		}
		c = b + an/c
		if math.Abs(c) < lentzFloor {
			c = lentzFloor
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < igammaEps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-LogGamma(a)) * h
}
