package services

import (
	"errors"
)

// ErrInvalidInput is returned when a well-formed payload carries a value the
// service does not accept (an unknown status, type or storage provider).
// Nothing has been written when it is returned.
var ErrInvalidInput = errors.New("invalid input")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}
