package exposure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashla/incident.report/internal/sgo"
)

func TestSimpleModel(t *testing.T) {
	t.Parallel()

	m := Model{
		Kind:             ModelSimple,
		BaseMiles:        1e6,
		BaseMilesMin:     8e5,
		BaseMilesMax:     1.2e6,
		DeadheadFraction: 0.2,
	}
	miles, err := m.Miles()
	require.NoError(t, err)
	assert.InEpsilon(t, 1.25e6, miles, 1e-12) // 1e6 / (1 - 0.2)

	lo, best, hi, err := m.Range()
	require.NoError(t, err)
	assert.InEpsilon(t, 1e6, lo, 1e-12)
	assert.InEpsilon(t, 1.25e6, best, 1e-12)
	assert.InEpsilon(t, 1.5e6, hi, 1e-12)
}

func TestSimpleModelRejectsBadDeadhead(t *testing.T) {
	t.Parallel()

	for _, frac := range []float64{-0.1, 1, 1.5} {
		m := Model{Kind: ModelSimple, BaseMiles: 100, DeadheadFraction: frac}
		_, err := m.Miles()
		require.Error(t, err, "fraction %v", frac)
		assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
	}
}

func TestCompositeModel(t *testing.T) {
	t.Parallel()

	m := Model{
		Kind:               ModelComposite,
		BaseMiles:          5e6,
		BaseMilesMin:       4e6,
		BaseMilesMax:       6e6,
		DeadheadFraction:   0,
		FixedEraMiles:      2e6,
		QualifyingFraction: 0.5,
	}
	miles, err := m.Miles()
	require.NoError(t, err)
	// 2e6 fixed-era miles plus half of the 3e6 later-era miles.
	assert.InEpsilon(t, 3.5e6, miles, 1e-12)

	lo, _, hi, err := m.Range()
	require.NoError(t, err)
	assert.InEpsilon(t, 3e6, lo, 1e-12)
	assert.InEpsilon(t, 4e6, hi, 1e-12)
}

func TestCompositeModelFixedEraPrecondition(t *testing.T) {
	t.Parallel()

	m := Model{
		Kind:               ModelComposite,
		BaseMiles:          1e6,
		FixedEraMiles:      2e6,
		QualifyingFraction: 0.5,
	}
	_, err := m.Miles()
	require.Error(t, err)
	assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
}

func TestDerivedModel(t *testing.T) {
	t.Parallel()

	m := Model{Kind: ModelDerived, Peer: sgo.Waymo, Divisor: 4}
	require.NoError(t, m.ValidateDivisor())

	_, err := m.Miles()
	require.Error(t, err, "derived model has no exposure of its own")

	for _, d := range []float64{1, 0, 11} {
		bad := Model{Kind: ModelDerived, Peer: sgo.Waymo, Divisor: d}
		err := bad.ValidateDivisor()
		require.Error(t, err, "divisor %v", d)
		assert.True(t, sgo.IsKind(err, sgo.KindBadParameter))
	}
}
