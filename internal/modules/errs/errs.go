package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
	ErrInference   = errors.New("inference error")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Persistence keeps an already classified error as is.
func Persistence(err error, msg string) error {
	if Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, msg, err)
}

func Inference(err error, msg string) error {
	if errors.Is(err, ErrInference) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInference, msg, err)
}

func Classified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrInference)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
