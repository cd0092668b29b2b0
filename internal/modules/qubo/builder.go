// Package qubo builds the binary quadratic objective for portfolio
// selection and maps it onto spin-Hamiltonian coefficients.
//
// Each asset is a binary inclusion variable x_i. The objective x'Qx blends
// covariance risk against expected return, scaled by the caller's risk
// tolerance. Both terms are normalized by their maximum magnitude so the
// tolerance has comparable meaning across universes of different size and
// volatility.
package qubo

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidDimension is returned when the covariance matrix is not square
// or its size disagrees with the return vector length.
var ErrInvalidDimension = errors.New("covariance matrix dimensions do not match return vector")

// Cardinality is an optional soft constraint on the number of selected
// assets, encoded as a quadratic penalty A*(sum(x)-K)^2 around the midpoint
// K of [Min, Max].
type Cardinality struct {
	Min int
	Max int
}

// Build constructs the symmetric QUBO matrix Q from annualized return
// statistics and a risk tolerance in [0,1].
//
//	Q_ii = cov_ii/covScale - lambda * mu_i/retScale
//	Q_ij = cov_ij/covScale        (i != j)
//
// A tolerance of 0 reduces the objective to pure variance minimization;
// 1 weights the return term at full normalized strength. A universe where
// every normalized return is non-positive still yields a valid objective
// (possibly selecting nothing); that is expected behavior, not an error.
func Build(mu []float64, sigma *mat.SymDense, lambda float64, card *Cardinality) (*mat.SymDense, error) {
	n := len(mu)
	if sigma == nil || sigma.SymmetricDim() != n {
		dim := 0
		if sigma != nil {
			dim = sigma.SymmetricDim()
		}
		return nil, fmt.Errorf("%w: sigma is %dx%d, mu has length %d", ErrInvalidDimension, dim, dim, n)
	}

	retScale := maxAbs(mu)
	if retScale <= 0 {
		retScale = 1.0
	}
	covScale := maxAbsSym(sigma)
	if covScale <= 0 {
		covScale = 1.0
	}

	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			q.SetSym(i, j, sigma.At(i, j)/covScale)
		}
		q.SetSym(i, i, q.At(i, i)-lambda*mu[i]/retScale)
	}

	if card != nil {
		applyCardinalityPenalty(q, card)
	}

	return q, nil
}

// applyCardinalityPenalty adds A*(sum(x)-K)^2 expanded over binary
// variables (x_i^2 = x_i):
//
//	Q_ii += A*(1-2K)
//	Q_ij += A          (i != j)
//
// The strength A matches the scale of the financial objective so the
// cardinality signal is competitive but not overwhelming.
func applyCardinalityPenalty(q *mat.SymDense, card *Cardinality) {
	n := q.SymmetricDim()

	lo := card.Min
	if lo < 1 {
		lo = 1
	}
	hi := card.Max
	if hi < 1 || hi > n {
		hi = n
	}
	k := float64(lo+hi) / 2.0

	a := math.Max(maxAbsSym(q), 1e-6)

	for i := 0; i < n; i++ {
		q.SetSym(i, i, q.At(i, i)+a*(1.0-2.0*k))
		for j := i + 1; j < n; j++ {
			q.SetSym(i, j, q.At(i, j)+a)
		}
	}
}

// Objective evaluates x'Qx for a binary selection vector.
func Objective(q *mat.SymDense, bits []int) float64 {
	n := q.SymmetricDim()
	var val float64
	for i := 0; i < n; i++ {
		if bits[i] == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			if bits[j] != 0 {
				val += q.At(i, j)
			}
		}
	}
	return val
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func maxAbsSym(s *mat.SymDense) float64 {
	n := s.SymmetricDim()
	var m float64
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if a := math.Abs(s.At(i, j)); a > m {
				m = a
			}
		}
	}
	return m
}
