package store

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/tuimath/internal/model"
)

var (
	// ErrNotFound is returned when a referenced user or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is returned when the backend rejects a write for size.
	// The previously persisted document is left untouched.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrValidation is returned when input fails a precondition.
	ErrValidation = model.ErrValidation

	// ErrSessionCompleted is returned when a patch would modify a completed session.
	ErrSessionCompleted = fmt.Errorf("%w: session already completed", model.ErrValidation)

	// ErrProblemImmutable is returned when a patch rewrites an answered problem.
	ErrProblemImmutable = fmt.Errorf("%w: answered problem cannot change", model.ErrValidation)

	// errCorruptedData marks an unparsable or shape-invalid document. Initialize
	// recovers from it and never returns it.
	errCorruptedData = errors.New("corrupted data")
)
