package qubo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testInputs() ([]float64, *mat.SymDense) {
	mu := []float64{0.10, 0.20, 0.05}
	sigma := mat.NewSymDense(3, []float64{
		0.04, 0.01, 0.002,
		0.01, 0.09, 0.005,
		0.002, 0.005, 0.02,
	})
	return mu, sigma
}

func TestBuild_Symmetric(t *testing.T) {
	mu, sigma := testInputs()

	q, err := Build(mu, sigma, 0.5, nil)
	require.NoError(t, err)

	n := q.SymmetricDim()
	require.Equal(t, 3, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.Equal(t, q.At(i, j), q.At(j, i))
		}
	}
}

func TestBuild_Normalization(t *testing.T) {
	mu, sigma := testInputs()

	q, err := Build(mu, sigma, 1.0, nil)
	require.NoError(t, err)

	// Off-diagonal entries are covariance scaled by max |cov| = 0.09
	assert.InDelta(t, 0.01/0.09, q.At(0, 1), 1e-12)
	assert.InDelta(t, 0.005/0.09, q.At(1, 2), 1e-12)

	// Diagonal blends normalized variance against normalized return
	// (max |mu| = 0.20)
	assert.InDelta(t, 0.04/0.09-0.10/0.20, q.At(0, 0), 1e-12)
	assert.InDelta(t, 0.09/0.09-0.20/0.20, q.At(1, 1), 1e-12)
}

func TestBuild_ZeroLambdaIsPureRisk(t *testing.T) {
	mu, sigma := testInputs()

	q, err := Build(mu, sigma, 0.0, nil)
	require.NoError(t, err)

	// With lambda=0 the return term vanishes entirely
	assert.InDelta(t, 0.04/0.09, q.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, q.At(1, 1), 1e-12)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	mu := []float64{0.1, 0.2}
	sigma := mat.NewSymDense(3, nil)

	_, err := Build(mu, sigma, 0.5, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDimension))
}

func TestBuild_AllNegativeReturnsStillValid(t *testing.T) {
	mu := []float64{-0.05, -0.12}
	sigma := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.09})

	q, err := Build(mu, sigma, 1.0, nil)
	require.NoError(t, err)

	// Every diagonal entry is positive: the objective prefers excluding
	// everything, which is a valid outcome
	assert.Greater(t, q.At(0, 0), 0.0)
	assert.Greater(t, q.At(1, 1), 0.0)
}

func TestBuild_CardinalityPenalty(t *testing.T) {
	mu, sigma := testInputs()

	plain, err := Build(mu, sigma, 0.5, nil)
	require.NoError(t, err)
	constrained, err := Build(mu, sigma, 0.5, &Cardinality{Min: 2, Max: 2})
	require.NoError(t, err)

	// Penalty shifts off-diagonals up by A and diagonals by A*(1-2K)
	assert.Greater(t, constrained.At(0, 1), plain.At(0, 1))

	// Selecting exactly K=2 assets must beat selecting all three under
	// the penalized objective when the plain objectives are comparable
	two := Objective(constrained, []int{1, 1, 0})
	three := Objective(constrained, []int{1, 1, 1})
	assert.Less(t, two, three)
}

func TestObjective(t *testing.T) {
	q := mat.NewSymDense(2, []float64{1.0, -0.5, -0.5, 2.0})

	assert.Equal(t, 0.0, Objective(q, []int{0, 0}))
	assert.Equal(t, 1.0, Objective(q, []int{1, 0}))
	assert.Equal(t, 2.0, Objective(q, []int{0, 1}))
	assert.Equal(t, 2.0, Objective(q, []int{1, 1})) // 1 + 2 - 2*0.5
}
