package ksef

import (
	"errors"
	"fmt"
)

// ValidationError sygnalizuje błąd danych wejściowych - lokalny, bez sensu
// ponawiania, zgłaszany zanim nastąpi jakiekolwiek wywołanie sieciowe.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SigningError sygnalizuje defekt w torze podpisu (nieobsługiwany typ klucza,
// zniekształcony podpis). Nie podlega ponawianiu.
type SigningError struct {
	Message string
	Err     error
}

func (e *SigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

func NewSigningError(message string, err error) *SigningError {
	return &SigningError{Message: message, Err: err}
}

func IsSigningError(err error) bool {
	var se *SigningError
	return errors.As(err, &se)
}
