// Package portfolio orchestrates the optimization pipeline: market data,
// backend selection, the quantum and classical optimizers in parallel, and
// assembly of the comparison result.
package portfolio

import (
	"github.com/aristath/quantfolio/internal/modules/analytics"
	"github.com/aristath/quantfolio/internal/modules/marketdata"
)

// Universe size limits for one optimization request.
const (
	MinTickers = 2
	MaxTickers = 50
)

// Request is one optimization job.
type Request struct {
	Tickers []string `json:"tickers"`
	// RiskTolerance is the return/risk tradeoff lambda in [0,1]:
	// 0 minimizes variance, 1 chases expected return.
	RiskTolerance float64 `json:"risk_tolerance"`
	// PreferSimulator forces the local simulator backend.
	PreferSimulator bool `json:"prefer_simulator,omitempty"`
	// Credential authenticates against the quantum runtime. Optional;
	// without it the simulator serves the request.
	Credential string `json:"credential,omitempty"`
	// Seed pins all stochastic stages for reproducibility. 0 draws a
	// fresh seed.
	Seed uint64 `json:"seed,omitempty"`
	// MinAssets and MaxAssets optionally bound how many assets the
	// quantum selection may hold, enforced as a soft penalty on the
	// objective. 0 leaves the respective bound open.
	MinAssets int `json:"min_assets,omitempty"`
	MaxAssets int `json:"max_assets,omitempty"`
}

// BackendInfo reports which evaluator produced the quantum result.
type BackendInfo struct {
	Name           string  `json:"name"`
	Fallback       bool    `json:"fallback"`
	FallbackReason *string `json:"fallback_reason"`
}

// QuantumResult is the QAOA side of the comparison.
type QuantumResult struct {
	// Allocation maps ticker to percent weight, equal-weighted over the
	// selected subset.
	Allocation map[string]float64 `json:"allocation"`
	Metrics    analytics.Metrics  `json:"metrics"`
	// Counts is the raw final sampling distribution, bitstring to shots.
	Counts map[string]int `json:"counts"`
	// Trace is the energy estimate at every optimizer evaluation.
	Trace []float64 `json:"convergence_trace"`
	// Degenerate is set when sampling selected no assets and the
	// highest-return single-asset fallback was substituted.
	Degenerate bool `json:"degenerate"`
}

// ClassicalResult is the Markowitz side of the comparison.
type ClassicalResult struct {
	Allocation map[string]float64 `json:"allocation"`
	Metrics    analytics.Metrics  `json:"metrics"`
}

// Response is the assembled comparison.
type Response struct {
	RunID     string                     `json:"run_id"`
	Tickers   []string                   `json:"tickers"`
	Dropped   []marketdata.DroppedTicker `json:"dropped_tickers"`
	Quantum   QuantumResult              `json:"quantum"`
	Classical ClassicalResult            `json:"classical"`
	Benchmark analytics.Metrics          `json:"benchmark"`
	// Correlation is the Pearson matrix of daily returns, ticker order
	// matching Tickers.
	Correlation [][]float64               `json:"correlation"`
	Backend     BackendInfo               `json:"backend"`
	Frontier    []analytics.FrontierPoint `json:"frontier"`
	Backtest    []analytics.BacktestPoint `json:"backtest"`
	ElapsedMs   int64                     `json:"elapsed_ms"`
}

// ValidationResult is the ticker pre-check answer.
type ValidationResult struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}
