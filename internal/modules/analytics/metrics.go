// Package analytics derives risk/return measures, the efficient frontier,
// and the historical backtest from return statistics and allocations. All
// functions are pure; nothing here holds state across requests.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RiskFreeRate approximates the US 3-month Treasury bill yield, used in
// Sharpe ratio calculations.
const RiskFreeRate = 0.05

// zeroVolEpsilon is the threshold under which a portfolio is treated as
// having no volatility.
const zeroVolEpsilon = 1e-9

// Metrics holds annualized portfolio measures.
type Metrics struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// Normalize scales weights to sum to 1, handling binary allocations. A
// zero vector is returned unchanged.
func Normalize(weights []float64) []float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	if sum <= 0 {
		return out
	}
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

// ExpectedReturn computes w'mu.
func ExpectedReturn(weights, mu []float64) float64 {
	var r float64
	for i, w := range weights {
		r += w * mu[i]
	}
	return r
}

// Volatility computes sqrt(w'Sw).
func Volatility(weights []float64, sigma *mat.SymDense) float64 {
	var v float64
	for i := range weights {
		for j := range weights {
			v += weights[i] * weights[j] * sigma.At(i, j)
		}
	}
	return math.Sqrt(math.Max(v, 0))
}

// Sharpe computes (r - riskFree) / vol. The zero-volatility policy is a
// 0.0 sentinel rather than a signed infinity: a degenerate riskless
// portfolio reports no excess return per unit of risk. Keeping every
// numeric output finite also spares JSON consumers from IEEE specials.
func Sharpe(expectedReturn, volatility float64) float64 {
	if volatility <= zeroVolEpsilon {
		return 0.0
	}
	return (expectedReturn - RiskFreeRate) / volatility
}

// Evaluate computes all three measures for a weight vector, renormalizing
// first so binary allocations are handled uniformly.
func Evaluate(weights, mu []float64, sigma *mat.SymDense) Metrics {
	w := Normalize(weights)
	ret := ExpectedReturn(w, mu)
	vol := Volatility(w, sigma)
	return Metrics{
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    Sharpe(ret, vol),
	}
}

// EvaluateSeries computes annualized metrics from a daily return series
// (252 trading days per year). Used for the market benchmark.
func EvaluateSeries(daily []float64) Metrics {
	const tradingDays = 252

	n := len(daily)
	if n == 0 {
		return Metrics{}
	}

	mean := 0.0
	for _, r := range daily {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range daily {
		variance += (r - mean) * (r - mean)
	}
	if n > 1 {
		variance /= float64(n - 1)
	}

	ret := mean * tradingDays
	vol := math.Sqrt(variance) * math.Sqrt(tradingDays)
	return Metrics{
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    Sharpe(ret, vol),
	}
}
