package analytics

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// FrontierKind tags a point in the risk/return plane.
type FrontierKind string

const (
	// KindRandom - a uniformly sampled feasible portfolio
	KindRandom FrontierKind = "random"
	// KindFrontier - a point on the minimum-variance curve
	KindFrontier FrontierKind = "frontier"
	// KindQAOA - the decoded quantum allocation
	KindQAOA FrontierKind = "qaoa"
	// KindClassical - the continuous Markowitz allocation
	KindClassical FrontierKind = "classical"
)

// FrontierPoint is one point in the risk/return plane.
type FrontierPoint struct {
	Volatility     float64      `json:"volatility"`
	ExpectedReturn float64      `json:"expected_return"`
	Sharpe         float64      `json:"sharpe"`
	Kind           FrontierKind `json:"kind"`
}

// FrontierSolver re-solves the constrained mean-variance problem at one
// tradeoff level. Satisfied by the markowitz optimizer; injected to keep
// this package free of a dependency cycle.
type FrontierSolver func(lambda float64) ([]float64, error)

// FrontierConfig sizes the generated point cloud.
type FrontierConfig struct {
	RandomPoints  int // uniformly sampled feasible portfolios
	FrontierSteps int // tradeoff sweep resolution
	Seed          uint64
}

// DefaultFrontierConfig mirrors the sizing the charts expect.
func DefaultFrontierConfig() FrontierConfig {
	return FrontierConfig{RandomPoints: 300, FrontierSteps: 40, Seed: 42}
}

// Frontier samples a cloud of random feasible portfolios and derives the
// minimum-variance curve by sweeping the risk-tolerance parameter and
// re-solving the constrained problem at each step. Frontier points are
// sorted by ascending volatility. The caller appends the qaoa/classical
// points itself.
func Frontier(mu []float64, sigma *mat.SymDense, solve FrontierSolver, cfg FrontierConfig) []FrontierPoint {
	n := len(mu)
	points := make([]FrontierPoint, 0, cfg.RandomPoints+cfg.FrontierSteps)

	// Uniform simplex sampling is Dirichlet(1,...,1)
	alpha := make([]float64, n)
	for i := range alpha {
		alpha[i] = 1.0
	}
	dir := distmv.NewDirichlet(alpha, rand.NewPCG(cfg.Seed, cfg.Seed))

	w := make([]float64, n)
	for i := 0; i < cfg.RandomPoints; i++ {
		dir.Rand(w)
		points = append(points, pointFor(w, mu, sigma, KindRandom))
	}

	frontier := make([]FrontierPoint, 0, cfg.FrontierSteps)
	for step := 0; step < cfg.FrontierSteps; step++ {
		lambda := 0.0
		if cfg.FrontierSteps > 1 {
			lambda = float64(step) / float64(cfg.FrontierSteps-1)
		}
		weights, err := solve(lambda)
		if err != nil {
			// A single failed sweep point leaves a gap, nothing more
			continue
		}
		frontier = append(frontier, pointFor(weights, mu, sigma, KindFrontier))
	}
	sort.Slice(frontier, func(i, j int) bool {
		return frontier[i].Volatility < frontier[j].Volatility
	})

	return append(points, frontier...)
}

// PointFor scores a weight vector into a tagged frontier point.
func PointFor(weights, mu []float64, sigma *mat.SymDense, kind FrontierKind) FrontierPoint {
	return pointFor(Normalize(weights), mu, sigma, kind)
}

func pointFor(w, mu []float64, sigma *mat.SymDense, kind FrontierKind) FrontierPoint {
	ret := ExpectedReturn(w, mu)
	vol := Volatility(w, sigma)
	return FrontierPoint{
		Volatility:     vol,
		ExpectedReturn: ret,
		Sharpe:         Sharpe(ret, vol),
		Kind:           kind,
	}
}
