package qubo

import "gonum.org/v1/gonum/mat"

// IsingCoefficients holds the spin-Hamiltonian form of a QUBO:
//
//	H(z) = Offset + sum_i h_i z_i + sum_{i<j} J_ij z_i z_j,  z_i in {-1,+1}
//
// derived from x'Qx via the substitution x_i = (1-z_i)/2. The coefficients
// are a pure function of Q; evaluating H on spins derived from any bitstring
// reproduces the QUBO objective on that bitstring exactly.
type IsingCoefficients struct {
	H      []float64
	J      map[[2]int]float64 // upper-triangular: key is [i,j] with i < j
	Offset float64
}

// ToIsing converts a symmetric QUBO matrix into Ising coefficients.
//
// Expanding x_i x_j = (1 - z_i - z_j + z_i z_j)/4 and x_i = (1-z_i)/2 and
// collecting terms (Q symmetric):
//
//	offset = sum_i Q_ii/2 + sum_{i<j} Q_ij/2
//	h_i    = -Q_ii/2 - sum_{j!=i} Q_ij/2
//	J_ij   = Q_ij/2            (i < j)
func ToIsing(q *mat.SymDense) IsingCoefficients {
	n := q.SymmetricDim()
	h := make([]float64, n)
	j := make(map[[2]int]float64)
	var offset float64

	for i := 0; i < n; i++ {
		offset += q.At(i, i) / 2.0
		h[i] = -q.At(i, i) / 2.0
		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			h[i] -= q.At(i, k) / 2.0
		}
		for k := i + 1; k < n; k++ {
			offset += q.At(i, k) / 2.0
			if coeff := q.At(i, k) / 2.0; coeff != 0 {
				j[[2]int{i, k}] = coeff
			}
		}
	}

	return IsingCoefficients{H: h, J: j, Offset: offset}
}

// Energy evaluates the Ising Hamiltonian on a bitstring, using the
// convention z_i = 1 - 2*b_i (bit 0 maps to spin +1).
func (c IsingCoefficients) Energy(bits []int) float64 {
	z := make([]float64, len(bits))
	for i, b := range bits {
		z[i] = 1.0 - 2.0*float64(b)
	}

	e := c.Offset
	for i, hi := range c.H {
		e += hi * z[i]
	}
	for key, jij := range c.J {
		e += jij * z[key[0]] * z[key[1]]
	}
	return e
}

// Size returns the number of spins.
func (c IsingCoefficients) Size() int {
	return len(c.H)
}
