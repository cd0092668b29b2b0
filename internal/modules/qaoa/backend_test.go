package qaoa

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/modules/qubo"
)

// stubEvaluator returns a fixed distribution for every call.
type stubEvaluator struct {
	name   string
	counts Counts
	err    error
	calls  int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ qubo.IsingCoefficients, _ []float64, _ int) (Counts, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.counts, nil
}

func (s *stubEvaluator) Name() string { return s.name }

func TestSelector_UserPrefersSimulator(t *testing.T) {
	sel := NewSelector("http://runtime.example", zerolog.Nop())

	choice := sel.Select(context.Background(), SelectionInput{
		Assets:          3,
		Credential:      "token",
		PreferSimulator: true,
	})

	assert.Equal(t, TargetSimulator, choice.Target)
	assert.True(t, choice.Fallback)
	assert.Equal(t, "user selection", choice.Reason)
	assert.Nil(t, choice.Alternate)
}

func TestSelector_UniverseTooLargeForHardware(t *testing.T) {
	sel := NewSelector("http://runtime.example", zerolog.Nop())
	sel.SetDialer(func(context.Context, string) (Evaluator, error) {
		t.Fatal("dialer must not be called when universe exceeds the qubit cap")
		return nil, nil
	})

	// Credential present makes no difference: size wins
	choice := sel.Select(context.Background(), SelectionInput{
		Assets:     HardwareMaxQubits + 1,
		Credential: "token",
	})

	assert.Equal(t, TargetSimulator, choice.Target)
	assert.True(t, choice.Fallback)
	assert.Contains(t, choice.Reason, "universe too large")
}

func TestSelector_NoCredential(t *testing.T) {
	sel := NewSelector("http://runtime.example", zerolog.Nop())

	choice := sel.Select(context.Background(), SelectionInput{Assets: 3})

	assert.Equal(t, TargetSimulator, choice.Target)
	assert.Equal(t, "no credential", choice.Reason)
}

func TestSelector_HardwareAcquisitionFailure(t *testing.T) {
	sel := NewSelector("http://runtime.example", zerolog.Nop())
	sel.SetDialer(func(context.Context, string) (Evaluator, error) {
		return nil, errors.New("session quota exhausted")
	})

	choice := sel.Select(context.Background(), SelectionInput{
		Assets:     3,
		Credential: "token",
	})

	assert.Equal(t, TargetSimulator, choice.Target)
	assert.True(t, choice.Fallback)
	assert.Contains(t, choice.Reason, "hardware unavailable")
	assert.Contains(t, choice.Reason, "session quota exhausted")
}

func TestSelector_HardwareActive(t *testing.T) {
	hw := &stubEvaluator{name: "ibm_torino"}
	sel := NewSelector("http://runtime.example", zerolog.Nop())
	sel.SetDialer(func(context.Context, string) (Evaluator, error) {
		return hw, nil
	})

	choice := sel.Select(context.Background(), SelectionInput{
		Assets:     3,
		Credential: "token",
	})

	require.Equal(t, TargetHardware, choice.Target)
	assert.False(t, choice.Fallback)
	assert.Empty(t, choice.Reason)
	assert.Equal(t, "ibm_torino", choice.Backend)
	assert.NotNil(t, choice.Alternate, "hardware choice must carry a simulator alternate")
}
