package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is a query-layer error carrying a native protocol error code.
type Error struct {
	Code     Code   // Protocol error code
	Class    Class  // Stage that detected the error
	Message  string // Primary error message
	Detail   string // Optional detailed error message
	Hint     string // Optional hint message
	Keyspace string // Keyspace name if applicable
	Table    string // Table name if applicable
	Column   string // Column name if applicable
	Cause    error  // Underlying error, if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s DETAIL: %s", e.Code, e.Class, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Class, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithClass sets the detecting stage
func (e *Error) WithClass(class Class) *Error {
	e.Class = class
	return e
}

// WithDetail adds detail to the error
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithDetailf adds formatted detail to the error
func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint adds a hint to the error
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithTable sets the keyspace and table name
func (e *Error) WithTable(keyspace, table string) *Error {
	e.Keyspace = keyspace
	e.Table = table
	return e
}

// WithColumn sets the column name
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithCause records the underlying error
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// IsError checks if an error is an Error with a specific code
func IsError(err error, code Code) bool {
	var qErr *Error
	if !stderrors.As(err, &qErr) {
		return false
	}
	return qErr.Code == code
}

// IsClass checks if an error is an Error detected by the given stage
func IsClass(err error, class Class) bool {
	var qErr *Error
	if !stderrors.As(err, &qErr) {
		return false
	}
	return qErr.Class == class
}

// GetError attempts to extract an Error from any error
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var qErr *Error
	if stderrors.As(err, &qErr) {
		return qErr
	}
	// Wrap generic errors as server errors
	return Newf(ServerError, "%v", err).WithCause(err)
}
