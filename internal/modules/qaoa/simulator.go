package qaoa

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/modules/qubo"
)

// SimulatorMaxQubits caps the statevector simulation. The state grows as
// 2^n, so anything past this is unreasonable to simulate exactly.
const SimulatorMaxQubits = 20

// Simulator is a shot-based statevector simulator for the QAOA circuit:
// uniform superposition, then p layers of a diagonal cost phase exp(-i*gamma*H)
// followed by a transverse-field mixer Rx(2*beta) on every qubit, then
// sampling of the final probability distribution.
type Simulator struct {
	rng *rand.Rand
	log zerolog.Logger
}

// NewSimulator creates a simulator with a seeded random source, so runs
// are reproducible for testing.
func NewSimulator(seed uint64, log zerolog.Logger) *Simulator {
	return &Simulator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log: log.With().Str("component", "simulator").Logger(),
	}
}

// Name identifies the backend for reporting.
func (s *Simulator) Name() string {
	return "statevector-simulator"
}

// Evaluate simulates the circuit at the given parameters and samples the
// requested number of shots.
func (s *Simulator) Evaluate(ctx context.Context, ham qubo.IsingCoefficients, params []float64, shots int) (Counts, error) {
	n := ham.Size()
	if n > SimulatorMaxQubits {
		return nil, fmt.Errorf("universe of %d assets exceeds simulator limit of %d qubits", n, SimulatorMaxQubits)
	}
	if len(params)%2 != 0 || len(params) == 0 {
		return nil, fmt.Errorf("parameter vector must hold gamma/beta pairs, got length %d", len(params))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim := 1 << n

	// Diagonal cost Hamiltonian: energy of each basis state, computed once
	energies := make([]float64, dim)
	bits := make([]int, n)
	for state := 0; state < dim; state++ {
		for i := 0; i < n; i++ {
			bits[i] = (state >> i) & 1
		}
		energies[state] = ham.Energy(bits)
	}

	// |+>^n initial state
	amp := make([]complex128, dim)
	initial := complex(1.0/math.Sqrt(float64(dim)), 0)
	for i := range amp {
		amp[i] = initial
	}

	depth := len(params) / 2
	for layer := 0; layer < depth; layer++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gamma := params[2*layer]
		beta := params[2*layer+1]

		// Cost unitary: a pure phase per basis state
		for state := 0; state < dim; state++ {
			phase := -gamma * energies[state]
			amp[state] *= complex(math.Cos(phase), math.Sin(phase))
		}

		// Mixer: Rx(2*beta) applied to every qubit
		cosB := complex(math.Cos(beta), 0)
		sinB := complex(0, -math.Sin(beta))
		for q := 0; q < n; q++ {
			bit := 1 << q
			for state := 0; state < dim; state++ {
				if state&bit != 0 {
					continue
				}
				a0 := amp[state]
				a1 := amp[state|bit]
				amp[state] = cosB*a0 + sinB*a1
				amp[state|bit] = sinB*a0 + cosB*a1
			}
		}
	}

	return s.sample(amp, n, shots), nil
}

// sample draws shots from |amp|^2 via inverse transform sampling.
func (s *Simulator) sample(amp []complex128, n, shots int) Counts {
	cumulative := make([]float64, len(amp))
	var sum float64
	for i, a := range amp {
		sum += real(a)*real(a) + imag(a)*imag(a)
		cumulative[i] = sum
	}

	counts := make(Counts)
	bits := make([]int, n)
	for shot := 0; shot < shots; shot++ {
		r := s.rng.Float64() * sum
		state := sort.SearchFloat64s(cumulative, r)
		if state == len(cumulative) {
			state = len(cumulative) - 1
		}
		for i := 0; i < n; i++ {
			bits[i] = (state >> i) & 1
		}
		counts[FormatBits(bits)]++
	}
	return counts
}
