package exam

import (
	"errors"
	"fmt"
)

// Error kinds. The boundary layer maps each kind to one status code.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrInvalid         = errors.New("invalid input")
)

var (
	ErrExamNotFound         = fmt.Errorf("exam %w", ErrNotFound)
	ErrQuestionNotFound     = fmt.Errorf("question %w", ErrNotFound)
	ErrResponseNotFound     = fmt.Errorf("response %w", ErrNotFound)
	ErrResultNotFound       = fmt.Errorf("result %w", ErrNotFound)
	ErrNoResponsesToRegrade = fmt.Errorf("responses %w for this exam", ErrNotFound)

	ErrAlreadySubmitted  = fmt.Errorf("%w: exam already submitted, you cannot submit again", ErrConflict)
	ErrResponseSubmitted = fmt.Errorf("%w: response already submitted", ErrConflict)
	ErrDuplicateResult   = fmt.Errorf("%w: result already exists for exam and user", ErrConflict)
	ErrDuplicateResponse = fmt.Errorf("%w: response already exists for exam, user and question", ErrConflict)

	ErrNoResponses = fmt.Errorf("%w: no responses found for this exam", ErrBadRequest)
)
