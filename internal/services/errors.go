package services

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrGenerationExhausted = errors.New("could not generate a unique identifier")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already in use by another account")
	ErrUnverified         = errors.New("email address not verified")
	ErrInvalidToken       = errors.New("link is invalid, expired, or already used")
	ErrRoleNotHeld        = errors.New("role not held by user")
	ErrAlreadyVerified    = errors.New("email is already verified")
)

// FieldViolation is a single failed rule, addressed by its JSON field path (e.g. "media[0].url").
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in a payload.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// StorageError is an unexpected database failure. The cause carries a stack trace
// recorded where the failure was wrapped; print it with %+v.
type StorageError struct {
	Op  string
	Err error
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: pkgerrors.WithStack(err)}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "storage error during %s: %+v", e.Op, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}
