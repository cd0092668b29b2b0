// Package markowitz solves the continuous mean-variance relaxation of the
// portfolio problem: minimize w'Sw - lambda*mu'w over the simplex
// (weights sum to 1, long-only). It is fully independent of the quantum
// path and provides the classical benchmark allocation.
package markowitz

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distmv"
)

const (
	penaltyWeight = 1000.0
	minVariance   = 1e-10
)

// Optimizer performs constrained mean-variance optimization via a penalty
// method with multiple starting points. The local searches from each start
// are independent; the lowest feasible objective wins.
type Optimizer struct {
	log zerolog.Logger
}

// New creates a mean-variance optimizer.
func New(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "markowitz").Logger()}
}

// Result carries the winning weights and diagnostic detail.
type Result struct {
	Weights   []float64
	Objective float64 // w'Sw - lambda*mu'w at the returned weights
	Starts    int     // starting points attempted
	Converged int     // starting points that produced a feasible solution
}

// Optimize minimizes w'Sw - lambda*mu'w subject to sum(w)=1, w>=0.
//
// The budget constraint is enforced by a quadratic penalty plus projection
// of each trial point into [0,1] bounds, following a BFGS search with a
// Nelder-Mead fallback per start. Starting points are chosen to cover
// different basins: equal weight, the highest-return vertex, inverse-variance
// weights, and a seeded Dirichlet draw. When every start fails the equal
// weight portfolio is returned rather than an error; the constraint set is
// never empty for n >= 1, so a fully infeasible outcome indicates a bug,
// not a runtime condition.
func (o *Optimizer) Optimize(mu []float64, sigma *mat.SymDense, lambda float64, seed uint64) (*Result, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("empty return vector")
	}
	if sigma.SymmetricDim() != n {
		return nil, fmt.Errorf("covariance matrix is %dx%d but mu has length %d",
			sigma.SymmetricDim(), sigma.SymmetricDim(), n)
	}

	starts := startingPoints(mu, sigma, seed)

	best := math.Inf(1)
	var bestW []float64
	converged := 0

	for _, x0 := range starts {
		w, ok := o.solveFrom(mu, sigma, lambda, x0)
		if !ok {
			continue
		}
		obj := objective(w, mu, sigma, lambda)
		converged++
		if obj < best {
			best = obj
			bestW = w
		}
	}

	if bestW == nil {
		o.log.Warn().Msg("All optimization starts failed, returning equal weights")
		bestW = equalWeights(n)
		best = objective(bestW, mu, sigma, lambda)
	}

	return &Result{
		Weights:   bestW,
		Objective: best,
		Starts:    len(starts),
		Converged: converged,
	}, nil
}

// solveFrom runs one penalized local search from a single starting point.
func (o *Optimizer) solveFrom(mu []float64, sigma *mat.SymDense, lambda float64, x0 []float64) ([]float64, bool) {
	n := len(mu)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x)

			variance := quadraticForm(w, sigma)
			ret := dot(w, mu)

			obj := variance - lambda*ret

			sum := 0.0
			for _, wi := range w {
				sum += wi
			}
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x)

			sum := 0.0
			for _, wi := range w {
				sum += wi
			}
			for i := 0; i < n; i++ {
				grad[i] = -lambda * mu[i]
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * w[j]
				}
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	result, err := optimize.Minimize(problem, x0, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !acceptableStatus(result.Status) {
		result, err = optimize.Minimize(problem, x0, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil || !acceptableStatus(result.Status) {
			return nil, false
		}
	}

	// Clip numerical noise and renormalize so the budget constraint holds
	// exactly, not just within the penalty tolerance
	w := projectToBounds(result.X)
	sum := 0.0
	for _, wi := range w {
		sum += wi
	}
	if sum <= 0 {
		return nil, false
	}
	for i := range w {
		w[i] /= sum
	}
	return w, true
}

// acceptableStatus treats the usual gonum convergence statuses as success.
func acceptableStatus(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.StepConvergence:
		return true
	default:
		return false
	}
}

// startingPoints returns diverse initializations covering different basins.
func startingPoints(mu []float64, sigma *mat.SymDense, seed uint64) [][]float64 {
	n := len(mu)

	// Highest-return vertex
	argmax := 0
	for i, m := range mu {
		if m > mu[argmax] {
			argmax = i
		}
	}
	aggressive := make([]float64, n)
	aggressive[argmax] = 1.0

	// Inverse-variance weights bias toward the minimum-variance region
	invVar := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		invVar[i] = 1.0 / math.Max(sigma.At(i, i), minVariance)
		sum += invVar[i]
	}
	for i := range invVar {
		invVar[i] /= sum
	}

	// Seeded Dirichlet draw explores a different region each universe
	alpha := make([]float64, n)
	for i := range alpha {
		alpha[i] = 1.0
	}
	dir := distmv.NewDirichlet(alpha, rand.NewPCG(seed, seed))
	random := dir.Rand(make([]float64, n))

	return [][]float64{equalWeights(n), aggressive, invVar, random}
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

func projectToBounds(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Max(0.0, math.Min(1.0, v))
	}
	return proj
}

func objective(w, mu []float64, sigma *mat.SymDense, lambda float64) float64 {
	return quadraticForm(w, sigma) - lambda*dot(w, mu)
}

func quadraticForm(w []float64, sigma *mat.SymDense) float64 {
	var v float64
	for i := range w {
		for j := range w {
			v += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return v
}

func dot(a, b []float64) float64 {
	var v float64
	for i := range a {
		v += a[i] * b[i]
	}
	return v
}
