package reader

import (
	"errors"
	"fmt"
)

const contextWidth = 10

var (
	ErrExpectedInt = errors.New("reader: expected integer")
	ErrInvalidInt  = errors.New("reader: invalid integer")
)

// ParseError is a user-facing syntax error pinned to a cursor position.
type ParseError struct {
	Kind    error
	Message string
	Input   string
	Cursor  int
}

func (e *ParseError) Error() string {
	if e.Input == "" && e.Cursor == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s at position %d: %s<--[HERE]", e.Message, e.Cursor, e.Context())
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// Context returns up to ten bytes of input leading to the cursor.
func (e *ParseError) Context() string {
	cursor := min(e.Cursor, len(e.Input))
	start := max(0, cursor-contextWidth)
	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	return prefix + e.Input[start:cursor]
}

// Errorf builds a ParseError of the given kind at the current cursor.
func (r *Reader) Errorf(kind error, format string, args ...any) *ParseError {
	return r.ErrorAt(r.cursor, kind, format, args...)
}

// ErrorAt builds a ParseError of the given kind at an explicit position.
func (r *Reader) ErrorAt(cursor int, kind error, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Input:   r.input,
		Cursor:  cursor,
	}
}

// AsParseError unwraps err to a ParseError when it carries one.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
