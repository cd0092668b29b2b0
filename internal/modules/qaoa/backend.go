package qaoa

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Target identifies the class of expectation evaluator in use.
type Target string

const (
	// TargetHardware - a real quantum runtime session
	TargetHardware Target = "hardware"
	// TargetSimulator - the local statevector simulator
	TargetSimulator Target = "simulator"
)

// Choice is the backend decision for one optimization request. It is made
// exactly once, before any evaluation, and never revisited mid-request.
// When the active target differs from what the caller asked for, Fallback
// is set and Reason explains why in human-readable form.
type Choice struct {
	Backend   string // backend name for reporting
	Target    Target
	Fallback  bool
	Reason    string
	Evaluator Evaluator
	// Alternate is the simulator to restart against if the hardware
	// evaluator fails mid-loop. Nil when the simulator is already active.
	Alternate Evaluator
}

// SelectionInput describes what the caller asked for.
type SelectionInput struct {
	Assets          int
	Credential      string
	PreferSimulator bool
	Seed            uint64
}

// HardwareDialer acquires a hardware evaluator session. Injectable so the
// selector's transitions can be tested without a real runtime.
type HardwareDialer func(ctx context.Context, credential string) (Evaluator, error)

// Selector decides which evaluator target serves a request and implements
// the graceful-degradation policy. All paths terminate in a usable Choice;
// selection itself never fails.
type Selector struct {
	runtimeURL string
	dial       HardwareDialer
	log        zerolog.Logger
}

// NewSelector creates a backend selector. runtimeURL may be empty, in which
// case hardware is never attempted.
func NewSelector(runtimeURL string, log zerolog.Logger) *Selector {
	s := &Selector{
		runtimeURL: runtimeURL,
		log:        log.With().Str("component", "backend_selector").Logger(),
	}
	s.dial = func(ctx context.Context, credential string) (Evaluator, error) {
		client := NewHardwareClient(s.runtimeURL, credential, log)
		if err := client.OpenSession(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	return s
}

// SetDialer overrides the hardware session factory (used in tests).
func (s *Selector) SetDialer(dial HardwareDialer) {
	s.dial = dial
}

// Select runs the decision state machine:
//
//	simulator requested        -> simulator ("user selection")
//	universe > hardware cap    -> simulator (reason cites universe size)
//	no credential              -> simulator ("no credential")
//	session acquisition failed -> simulator ("hardware unavailable: ...")
//	otherwise                  -> hardware
func (s *Selector) Select(ctx context.Context, in SelectionInput) Choice {
	sim := NewSimulator(in.Seed, s.log)

	if in.PreferSimulator {
		return s.simulatorChoice(sim, "user selection")
	}

	if in.Assets > HardwareMaxQubits {
		return s.simulatorChoice(sim, fmt.Sprintf(
			"universe too large for hardware: %d assets exceed %d qubits", in.Assets, HardwareMaxQubits))
	}

	if in.Credential == "" || s.runtimeURL == "" {
		return s.simulatorChoice(sim, "no credential")
	}

	hw, err := s.dial(ctx, in.Credential)
	if err != nil {
		s.log.Warn().Err(err).Msg("Hardware session acquisition failed, degrading to simulator")
		return s.simulatorChoice(sim, fmt.Sprintf("hardware unavailable: %v", err))
	}

	s.log.Info().Str("backend", hw.Name()).Msg("Hardware backend active")
	return Choice{
		Backend:   hw.Name(),
		Target:    TargetHardware,
		Evaluator: hw,
		Alternate: sim,
	}
}

func (s *Selector) simulatorChoice(sim *Simulator, reason string) Choice {
	s.log.Info().Str("reason", reason).Msg("Simulator backend active")
	return Choice{
		Backend:   sim.Name(),
		Target:    TargetSimulator,
		Fallback:  true,
		Reason:    reason,
		Evaluator: sim,
	}
}
