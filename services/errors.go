package services

import (
	"errors"
	"fmt"

	"collabspace/repositories"
)

// Error kinds returned by the registries. They are always wrapped with a
// human readable message; match them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrNotFound           = errors.New("not found")
	ErrTeamRequired       = errors.New("team required")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrAlreadyMember      = errors.New("already a member")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("conflict")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// storageErr maps repository errors onto service error kinds.
func storageErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return notFoundf("%s not found", what)
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: %s was modified by another request, reload and retry", ErrConflict, what)
	}
	return fmt.Errorf("failed to store %s: %w", what, err)
}
