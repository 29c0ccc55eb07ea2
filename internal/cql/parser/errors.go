package parser

import (
	"fmt"

	"github.com/dshills/QuantaCQL/internal/errors"
)

// ParseError represents a parse error with position information
type ParseError struct {
	Msg    string
	Line   int
	Column int
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d %s", e.Line, e.Column, e.Msg)
}

// NewParseError creates a new parse error
func NewParseError(msg string, line, column int) *ParseError {
	return &ParseError{
		Msg:    msg,
		Line:   line,
		Column: column,
	}
}

func syntaxError(err error) *errors.Error {
	return errors.New(errors.SyntaxError, err.Error()).
		WithClass(errors.ClassCompile).
		WithCause(err)
}
