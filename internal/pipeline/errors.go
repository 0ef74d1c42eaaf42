package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/coverage"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
	"github.com/Conceptual-Machines/magda-composer/internal/retry"
)

// Error taxonomy. Every *StageError matches ErrStageFailure; Kind narrows it.
var (
	ErrRetrievalUnavailable = retrieval.ErrUnavailable
	ErrValidationFailure    = errors.New("validation failure")
	ErrStageFailure         = errors.New("stage failure")
	ErrExternalTimeout      = retry.ErrTimeout
)

// StageError reports which state failed and why.
type StageError struct {
	State State
	Kind  error
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.State, e.Cause)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func (e *StageError) Is(target error) bool {
	return target == ErrStageFailure
}

func newStageError(state State, cause error) *StageError {
	return &StageError{State: state, Kind: classify(cause), Cause: cause}
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrExternalTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrExternalTimeout
	case errors.Is(err, ErrValidationFailure),
		errors.Is(err, coverage.ErrEmptyMelody),
		errors.Is(err, coverage.ErrCoverageShort):
		return ErrValidationFailure
	case errors.Is(err, ErrRetrievalUnavailable):
		return ErrRetrievalUnavailable
	}
	return ErrStageFailure
}
