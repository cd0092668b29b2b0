package portfolio

import "fmt"

// ErrorKind is the machine-readable classification carried across the HTTP
// boundary.
type ErrorKind string

const (
	// KindInvalidInput - the request failed validation
	KindInvalidInput ErrorKind = "invalid_input"
	// KindInsufficientHistory - too few tickers with usable price history
	KindInsufficientHistory ErrorKind = "insufficient_history"
	// KindEvaluatorUnavailable - no quantum evaluator could serve the run
	KindEvaluatorUnavailable ErrorKind = "evaluator_unavailable"
	// KindTimeout - the request exceeded its time budget
	KindTimeout ErrorKind = "timeout"
	// KindInternal - anything else
	KindInternal ErrorKind = "internal"
)

// Error is a pipeline failure with a stable kind and human detail. When the
// variational loop had already started, Trace carries the partial
// convergence history for diagnostics.
type Error struct {
	Kind   ErrorKind
	Detail string
	Trace  []float64
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}
