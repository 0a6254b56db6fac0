package adaptive

import "errors"

var (
	// ErrEvaluation marks a function evaluation that failed or produced an
	// unusable output. It is absorbed by the runner and tallied per input.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrGoalMisconfigured is returned when no stopping goal can ever be met.
	ErrGoalMisconfigured = errors.New("goal misconfigured")

	// ErrDuplicateInput is returned when an input is told twice with
	// conflicting outputs.
	ErrDuplicateInput = errors.New("duplicate input")

	// ErrExecutorExhausted is returned when an executor can no longer accept
	// work.
	ErrExecutorExhausted = errors.New("executor exhausted")

	// ErrInvalidBounds is returned for empty or non-finite domains.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrOutOfBounds is returned when an input lies outside the domain.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrInvalidInput is returned for inputs that can never be evaluated,
	// such as NaN coordinates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled is returned when a run is cancelled before reaching its goal.
	ErrCancelled = errors.New("cancelled")
)
