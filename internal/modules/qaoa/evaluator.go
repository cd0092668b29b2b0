// Package qaoa implements the hybrid quantum-classical optimization loop:
// a derivative-free parameter search driven by sampled expectation values
// of the portfolio Ising Hamiltonian, with backend selection and one-shot
// simulator fallback.
package qaoa

import (
	"context"
	"errors"

	"github.com/aristath/quantfolio/internal/modules/qubo"
)

// ErrEvaluatorUnavailable is returned when the active expectation evaluator
// cannot execute a circuit (session loss, credential rejection, transport
// failure). The optimizer reacts with at most one fallback transition.
var ErrEvaluatorUnavailable = errors.New("expectation evaluator unavailable")

// Counts is a measured bitstring-count distribution. Keys are bitstrings
// with asset i at character index i; values sum to the shot count of the
// evaluation that produced them.
type Counts map[string]int

// Total returns the number of shots in the distribution.
func (c Counts) Total() int {
	var t int
	for _, n := range c {
		t += n
	}
	return t
}

// Evaluator executes a parameterized circuit for the given Hamiltonian and
// returns a sampled measurement distribution. Implementations must honor
// context cancellation and must not retry internally.
type Evaluator interface {
	// Evaluate runs the circuit at the given variational parameters
	// (gamma_1, beta_1, ..., gamma_p, beta_p) for the requested shots.
	Evaluate(ctx context.Context, ham qubo.IsingCoefficients, params []float64, shots int) (Counts, error)

	// Name identifies the backend for reporting.
	Name() string
}

// SessionCloser is implemented by evaluators that hold a remote session.
// Callers that obtained such an evaluator release the session when the run
// is over, successful or not.
type SessionCloser interface {
	Close(ctx context.Context)
}

// ExpectedEnergy computes the empirical expectation <H> from a measurement
// distribution: sum over bitstrings of (count/total) * H(bitstring).
func ExpectedEnergy(ham qubo.IsingCoefficients, counts Counts) float64 {
	total := counts.Total()
	if total == 0 {
		return 0
	}

	n := ham.Size()
	var expectation float64
	for bitstring, count := range counts {
		bits := ParseBits(bitstring, n)
		expectation += ham.Energy(bits) * float64(count) / float64(total)
	}
	return expectation
}

// ParseBits decodes a bitstring into a binary vector of exactly n entries,
// padding with zeros or truncating as needed. Character i maps to asset i.
func ParseBits(s string, n int) []int {
	bits := make([]int, n)
	for i := 0; i < n && i < len(s); i++ {
		if s[i] == '1' {
			bits[i] = 1
		}
	}
	return bits
}

// FormatBits renders a binary vector as a bitstring, asset i at index i.
func FormatBits(bits []int) string {
	buf := make([]byte, len(bits))
	for i, b := range bits {
		if b == 0 {
			buf[i] = '0'
		} else {
			buf[i] = '1'
		}
	}
	return string(buf)
}
