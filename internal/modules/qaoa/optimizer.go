package qaoa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/quantfolio/internal/modules/qubo"
)

// OptimizeConfig bounds the variational search.
type OptimizeConfig struct {
	Depth         int    // QAOA layers (p); the search runs over 2p angles
	MaxIterations int    // hard iteration cap; 0 selects the adaptive default
	ShotBudget    int    // shots for the final clean sample
	Seed          uint64 // seeds parameter initialization
}

// Result is the outcome of one variational run.
type Result struct {
	Params         []float64 // best parameters found
	Trace          []float64 // energy estimate at every evaluation, verbatim
	Distribution   Counts    // final high-shot sample at the best parameters
	Evaluations    int
	UsedFallback   bool      // hardware failed mid-run and the loop restarted on the simulator
	FallbackReason string
}

// Optimizer drives the classical side of the hybrid loop.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a variational optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "qaoa_optimizer").Logger()}
}

// defaultMaxIterations scales the budget down for larger circuits, which
// are more expensive to evaluate.
func defaultMaxIterations(n int) int {
	iter := 200 - 3*n
	if iter < 50 {
		iter = 50
	}
	return iter
}

// innerShots trades sampling variance for loop speed: search iterations use
// a reduced shot count, and only the final sample gets the full budget.
func innerShots(budget, n int) int {
	div := n / 10
	if div < 1 {
		div = 1
	}
	inner := budget / div
	if inner < 128 {
		inner = 128
	}
	if inner > budget {
		inner = budget
	}
	return inner
}

// Optimize searches for parameters minimizing the expected Ising energy,
// then performs one final full-budget sample at the best parameters.
//
// The search is Nelder-Mead: derivative-free, which is mandatory here since
// every objective value is a noisy sampled scalar. Energy estimates are
// recorded verbatim per evaluation (no monotonicity is implied) and the
// best-seen parameters are tracked explicitly rather than trusting the
// method's final simplex, again because of shot noise.
//
// If the active evaluator fails with ErrEvaluatorUnavailable and choice
// carries an alternate, the loop restarts once against it. There is no
// second retry; any further failure surfaces to the caller with the partial
// trace intact.
func (o *Optimizer) Optimize(ctx context.Context, ham qubo.IsingCoefficients, choice Choice, cfg OptimizeConfig) (*Result, error) {
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("circuit depth must be at least 1, got %d", cfg.Depth)
	}
	if cfg.ShotBudget < 1 {
		return nil, fmt.Errorf("shot budget must be at least 1, got %d", cfg.ShotBudget)
	}

	n := ham.Size()
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations(n)
	}
	inner := innerShots(cfg.ShotBudget, n)

	res := &Result{}

	params, dist, err := o.attempt(ctx, ham, choice.Evaluator, cfg, maxIter, inner, &res.Trace)
	if err != nil && errors.Is(err, ErrEvaluatorUnavailable) && choice.Alternate != nil {
		res.UsedFallback = true
		res.FallbackReason = fmt.Sprintf("hardware unavailable: %v", err)
		o.log.Warn().Err(err).Msg("Evaluator failed mid-loop, restarting once on simulator")
		params, dist, err = o.attempt(ctx, ham, choice.Alternate, cfg, maxIter, inner, &res.Trace)
	}
	res.Evaluations = len(res.Trace)
	if err != nil {
		// Partial trace is surfaced for diagnostics even on failure
		return res, err
	}

	res.Params = params
	res.Distribution = dist

	o.log.Info().
		Int("evaluations", res.Evaluations).
		Int("distinct_bitstrings", len(dist)).
		Bool("used_fallback", res.UsedFallback).
		Msg("Variational optimization complete")

	return res, nil
}

// attempt runs one full search-and-sample pass against a single evaluator.
func (o *Optimizer) attempt(
	ctx context.Context,
	ham qubo.IsingCoefficients,
	ev Evaluator,
	cfg OptimizeConfig,
	maxIter, inner int,
	trace *[]float64,
) ([]float64, Counts, error) {
	dims := 2 * cfg.Depth

	// Deterministic seeded initialization, uniform in [-pi, pi]
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb))
	x0 := make([]float64, dims)
	for i := range x0 {
		x0[i] = (rng.Float64()*2.0 - 1.0) * math.Pi
	}

	var evalErr error
	bestEnergy := math.Inf(1)
	bestParams := append([]float64(nil), x0...)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			counts, err := ev.Evaluate(ctx, ham, x, inner)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			energy := ExpectedEnergy(ham, counts)
			*trace = append(*trace, energy)
			if energy < bestEnergy {
				bestEnergy = energy
				bestParams = append(bestParams[:0], x...)
			}
			return energy
		},
	}

	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-4,
			Iterations: 25,
		},
	}

	// The method may report a non-success status on a noisy objective;
	// what matters is the best evaluated point, which we track ourselves.
	_, minErr := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})

	if evalErr != nil {
		return nil, nil, evalErr
	}
	if math.IsInf(bestEnergy, 1) {
		if minErr != nil {
			return nil, nil, fmt.Errorf("variational search produced no usable evaluation: %w", minErr)
		}
		return nil, nil, fmt.Errorf("variational search produced no usable evaluation")
	}

	// Final evaluation at the best parameters with the full shot budget
	dist, err := ev.Evaluate(ctx, ham, bestParams, cfg.ShotBudget)
	if err != nil {
		return nil, nil, err
	}
	return bestParams, dist, nil
}

// DecodeAllocation selects the portfolio from a final measurement
// distribution. Every distinct observed bitstring is scored against the
// QUBO objective directly (not the noisy Ising estimate) and the lowest
// objective wins; under shot noise the most-sampled state is not
// necessarily the lowest-energy one, so this is not a majority vote.
//
// Ties break toward the lexicographically smaller bitstring so decoding is
// deterministic. A selection of zero assets is reported as degenerate; it
// is a valid answer the caller must handle, not an error.
func DecodeAllocation(dist Counts, q *mat.SymDense) (bits []int, objective float64, degenerate bool) {
	n := q.SymmetricDim()

	bestVal := math.Inf(1)
	bestKey := ""
	var best []int
	for bitstring := range dist {
		candidate := ParseBits(bitstring, n)
		val := qubo.Objective(q, candidate)
		if val < bestVal || (val == bestVal && (best == nil || bitstring < bestKey)) {
			bestVal = val
			bestKey = bitstring
			best = candidate
		}
	}

	if best == nil {
		return make([]int, n), 0, true
	}

	selected := 0
	for _, b := range best {
		selected += b
	}
	return best, bestVal, selected == 0
}
