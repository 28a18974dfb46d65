package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/crashla/incident.report/internal/sgo"
)

func TestLogGamma(t *testing.T) {
	t.Parallel()

	cases := []struct {
		x    float64
		want float64
	}{
		{0.5, math.Log(math.Sqrt(math.Pi))},
		{1, 0},
		{2, 0},
		{3, math.Log(2)},
		{5, math.Log(24)},
		{10.5, 0}, // checked against stdlib below
	}
	for _, c := range cases {
		got := LogGamma(c.x)
		ref, _ := math.Lgamma(c.x)
		assert.InDelta(t, ref, got, 1e-10, "x=%v", c.x)
		if c.x != 10.5 {
			assert.InDelta(t, c.want, got, 1e-10, "x=%v", c.x)
		}
	}
}

func TestRegLowerGammaAgainstGonum(t *testing.T) {
	t.Parallel()

	shapes := []float64{0.5, 1.5, 2.5, 7.5, 20.5}
	xs := []float64{0.01, 0.3, 1, 2.5, 8, 30, 100}
	for _, a := range shapes {
		g := distuv.Gamma{Alpha: a, Beta: 1}
		for _, x := range xs {
			got := RegLowerGamma(a, x)
			want := g.CDF(x)
			assert.InDelta(t, want, got, 1e-10, "a=%v x=%v", a, x)
		}
	}
}

func TestRegLowerGammaEdges(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, RegLowerGamma(0.5, 0))
	// Both regimes must agree near the split x = a+1.
	a := 3.5
	below := RegLowerGamma(a, a+1-1e-9)
	above := RegLowerGamma(a, a+1+1e-9)
	assert.InDelta(t, below, above, 1e-8)
}

func TestGammaQuantileRejectsBadParameters(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		a, rate, p float64
	}{
		{"zero shape", 0, 1, 0.5},
		{"negative shape", -1, 1, 0.5},
		{"zero rate", 1, 0, 0.5},
		{"negative rate", 1, -2, 0.5},
		{"p zero", 1, 1, 0},
		{"p one", 1, 1, 1},
		{"p above one", 1, 1, 1.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := GammaQuantile(c.a, c.rate, c.p)
			require.Error(t, err)
			assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
		})
	}
}

func TestGammaQuantileRoundTrip(t *testing.T) {
	t.Parallel()

	shapes := []float64{0.5, 1.5, 3.5, 12.5}
	rates := []float64{0.25, 1, 2.2e6}
	ps := []float64{0.025, 0.1, 0.5, 0.9, 0.975}
	for _, a := range shapes {
		for _, rate := range rates {
			for _, p := range ps {
				q, err := GammaQuantile(a, rate, p)
				require.NoError(t, err)
				require.Positive(t, q)
				assert.InDelta(t, p, RegLowerGamma(a, q*rate), 1e-9,
					"a=%v rate=%v p=%v", a, rate, p)
			}
		}
	}
}

func TestGammaQuantileMedian(t *testing.T) {
	t.Parallel()

	// p=0.5 sits exactly on the tail-mirroring boundary of the normal
	// seed; it must terminate and land on the true median.
	assert.Zero(t, normalQuantile(0.5))
	for _, a := range []float64{0.5, 1, 4.5, 20} {
		for _, rate := range []float64{1, 2.2e6} {
			q, err := GammaQuantile(a, rate, 0.5)
			require.NoError(t, err)
			require.Positive(t, q)
			want := distuv.Gamma{Alpha: a, Beta: rate}.Quantile(0.5)
			assert.InEpsilon(t, want, q, 1e-8, "a=%v rate=%v", a, rate)
		}
	}
}

func TestNormalQuantileSymmetry(t *testing.T) {
	t.Parallel()

	for _, p := range []float64{0.01, 0.1, 0.25, 0.4} {
		lo := normalQuantile(p)
		hi := normalQuantile(1 - p)
		assert.Negative(t, lo)
		assert.InDelta(t, -lo, hi, 1e-15, "p=%v", p)
	}
}

func TestGammaQuantileAgainstGonum(t *testing.T) {
	t.Parallel()

	for _, a := range []float64{0.5, 2.5, 9.5} {
		for _, rate := range []float64{1, 3.7} {
			g := distuv.Gamma{Alpha: a, Beta: rate}
			for _, p := range []float64{0.05, 0.5, 0.95} {
				q, err := GammaQuantile(a, rate, p)
				require.NoError(t, err)
				want := g.Quantile(p)
				assert.InEpsilon(t, want, q, 1e-8, "a=%v rate=%v p=%v", a, rate, p)
			}
		}
	}
}

func TestPoissonRateIntervalTails(t *testing.T) {
	t.Parallel()

	const k, m = 3.0, 2.5e6

	est80, err := PoissonRate(k, m, 0.80)
	require.NoError(t, err)
	q10, err := GammaQuantile(k+0.5, m, 0.1)
	require.NoError(t, err)
	q90, err := GammaQuantile(k+0.5, m, 0.9)
	require.NoError(t, err)
	assert.InEpsilon(t, 1/q90, est80.Lo, 1e-12)
	assert.InEpsilon(t, 1/q10, est80.Hi, 1e-12)

	est95, err := PoissonRate(k, m, 0.95)
	require.NoError(t, err)
	q025, err := GammaQuantile(k+0.5, m, 0.025)
	require.NoError(t, err)
	q975, err := GammaQuantile(k+0.5, m, 0.975)
	require.NoError(t, err)
	assert.InEpsilon(t, 1/q975, est95.Lo, 1e-12)
	assert.InEpsilon(t, 1/q025, est95.Hi, 1e-12)

	// The median does not depend on the credible mass.
	assert.InEpsilon(t, est80.Median, est95.Median, 1e-12)

	assert.Less(t, est80.Lo, est80.Median)
	assert.Less(t, est80.Median, est80.Hi)
	// A wider mass gives a wider interval.
	assert.Less(t, est95.Lo, est80.Lo)
	assert.Greater(t, est95.Hi, est80.Hi)
}

func TestPoissonRateRejectsBadInputs(t *testing.T) {
	t.Parallel()

	_, err := PoissonRate(-1, 1e6, 0.8)
	assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
	_, err = PoissonRate(2, 0, 0.8)
	assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
	_, err = PoissonRate(2, 1e6, 1)
	assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
	_, err = PoissonRate(2, 1e6, 0)
	assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
}

func TestEstimateScale(t *testing.T) {
	t.Parallel()

	est, err := PoissonRate(5, 4.2e6, 0.9)
	require.NoError(t, err)

	const divisor = 4.0
	scaled := est.Scale(1 / divisor)
	assert.InEpsilon(t, est.Median/divisor, scaled.Median, 1e-15)
	assert.InEpsilon(t, est.Lo/divisor, scaled.Lo, 1e-15)
	assert.InEpsilon(t, est.Hi/divisor, scaled.Hi, 1e-15)
}

func TestZeroCountStillYieldsInterval(t *testing.T) {
	t.Parallel()

	// A month with zero incidents has posterior shape 0.5 and must still
	// produce a finite, ordered interval.
	est, err := PoissonRate(0, 1e6, 0.8)
	require.NoError(t, err)
	assert.Positive(t, est.Lo)
	assert.Less(t, est.Lo, est.Median)
	assert.Less(t, est.Median, est.Hi)
	assert.False(t, math.IsInf(est.Hi, 1))
}
