package qubo

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// enumerateBitstrings yields all 2^n bitstrings of length n.
func enumerateBitstrings(n int) [][]int {
	out := make([][]int, 0, 1<<n)
	for v := 0; v < 1<<n; v++ {
		bits := make([]int, n)
		for i := 0; i < n; i++ {
			bits[i] = (v >> i) & 1
		}
		out = append(out, bits)
	}
	return out
}

func TestToIsing_MatchesQUBOObjective(t *testing.T) {
	mu, sigma := testInputs()

	q, err := Build(mu, sigma, 0.7, nil)
	require.NoError(t, err)

	ising := ToIsing(q)
	require.Equal(t, 3, ising.Size())

	for _, bits := range enumerateBitstrings(3) {
		assert.InDelta(t, Objective(q, bits), ising.Energy(bits), 1e-9,
			"bitstring %v", bits)
	}
}

func TestToIsing_MatchesOnRandomMatrices(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 0))

	for trial := 0; trial < 20; trial++ {
		n := 2 + rng.IntN(5) // 2..6 assets
		q := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				q.SetSym(i, j, rng.Float64()*2.0-1.0)
			}
		}

		ising := ToIsing(q)
		for _, bits := range enumerateBitstrings(n) {
			assert.InDelta(t, Objective(q, bits), ising.Energy(bits), 1e-9)
		}
	}
}

func TestToIsing_AllZeroBitstringEnergyIsOffsetPlusTerms(t *testing.T) {
	mu, sigma := testInputs()
	q, err := Build(mu, sigma, 0.3, nil)
	require.NoError(t, err)

	ising := ToIsing(q)

	// x = 0 means every spin is +1; the QUBO objective is exactly zero
	zero := []int{0, 0, 0}
	assert.InDelta(t, 0.0, ising.Energy(zero), 1e-12)
}
