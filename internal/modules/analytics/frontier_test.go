package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interpolatingSolver blends the analytical minimum-variance allocation
// for testCovariance (w = [8/11, 3/11]) with the max-return vertex.
func interpolatingSolver(lambda float64) ([]float64, error) {
	minVar := []float64{8.0 / 11.0, 3.0 / 11.0}
	maxRet := []float64{0.0, 1.0}
	w := make([]float64, 2)
	for i := range w {
		w[i] = (1-lambda)*minVar[i] + lambda*maxRet[i]
	}
	return w, nil
}

func TestFrontier(t *testing.T) {
	mu := []float64{0.10, 0.20}
	sigma := testCovariance()
	cfg := FrontierConfig{RandomPoints: 200, FrontierSteps: 20, Seed: 42}

	points := Frontier(mu, sigma, interpolatingSolver, cfg)
	require.Len(t, points, 220)

	var random, frontier []FrontierPoint
	for _, p := range points {
		switch p.Kind {
		case KindRandom:
			random = append(random, p)
		case KindFrontier:
			frontier = append(frontier, p)
		}
	}
	require.Len(t, random, 200)
	require.Len(t, frontier, 20)

	t.Run("frontier sorted by volatility", func(t *testing.T) {
		for i := 1; i < len(frontier); i++ {
			assert.LessOrEqual(t, frontier[i-1].Volatility, frontier[i].Volatility)
		}
	})

	t.Run("no random point beats minimum variance", func(t *testing.T) {
		minVol := frontier[0].Volatility
		for _, p := range random {
			assert.GreaterOrEqual(t, p.Volatility, minVol-1e-9)
		}
	})

	t.Run("deterministic for fixed seed", func(t *testing.T) {
		again := Frontier(mu, sigma, interpolatingSolver, cfg)
		assert.Equal(t, points, again)
	})
}

func TestFrontierSolverFailure(t *testing.T) {
	mu := []float64{0.10, 0.20}
	sigma := testCovariance()
	cfg := FrontierConfig{RandomPoints: 10, FrontierSteps: 10, Seed: 1}

	calls := 0
	flaky := func(lambda float64) ([]float64, error) {
		calls++
		if calls%2 == 0 {
			return nil, errors.New("did not converge")
		}
		return interpolatingSolver(lambda)
	}

	points := Frontier(mu, sigma, flaky, cfg)

	// Failed sweep steps are skipped, the rest survive.
	count := 0
	for _, p := range points {
		if p.Kind == KindFrontier {
			count++
		}
	}
	assert.Equal(t, 5, count)
	assert.Len(t, points, 15)
}

func TestPointFor(t *testing.T) {
	mu := []float64{0.10, 0.20}
	sigma := testCovariance()

	// Binary allocations are normalized before scoring.
	p := PointFor([]float64{1, 1}, mu, sigma, KindQAOA)
	assert.Equal(t, KindQAOA, p.Kind)
	assert.InDelta(t, 0.15, p.ExpectedReturn, 1e-12)
}
