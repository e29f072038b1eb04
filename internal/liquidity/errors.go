package liquidity

import (
	"errors"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPoolNotFound     = errors.New("pool not found")
	ErrPositionNotFound = errors.New("position not found")
	// ErrUnauthorized is returned when a position exists but belongs to another wallet.
	ErrUnauthorized = errors.New("position not owned by wallet")
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every rejected field of a request. It unwraps to
// ErrInvalidInput.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Messages returns the field errors as display strings.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Field+": "+f.Message)
	}
	return out
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
