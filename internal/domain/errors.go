package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownColumn is returned when an operation references a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnknownTarget is returned for an unsupported target system or file format.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrUnknownOperation is returned for an operation tag that is not recognised.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidArity is returned when an operation is declared with the wrong number of columns.
	ErrInvalidArity = errors.New("invalid operand count")
	// ErrUnsupportedFormat is returned when an input file type cannot be read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrDivisionByZero is returned by a quotient whose denominator is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNonNumeric is returned when an arithmetic operand cannot be read as a number.
	ErrNonNumeric = errors.New("non-numeric operand")
	// ErrEmptyUID is returned when a uid source column is empty for a row.
	ErrEmptyUID = errors.New("empty uid column")
)

// ConfigurationError reports an invalid collection, operation or target declaration.
type ConfigurationError struct {
	Collection string
	Operation  string
	Err        error
}

func (e *ConfigurationError) Error() string {
	return "configuration error" + describe(e.Collection, e.Operation) + ": " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DataError reports a value that could not be transformed.
type DataError struct {
	Collection string
	Operation  string
	// Row is the zero-based row index in the deduplicated table, or -1 when unknown.
	Row int
	Err error
}

func (e *DataError) Error() string {
	msg := "data error" + describe(e.Collection, e.Operation)
	if e.Row >= 0 {
		msg += fmt.Sprintf(" row=%d", e.Row)
	}
	return msg + ": " + e.Err.Error()
}

func (e *DataError) Unwrap() error { return e.Err }

// IOError reports a failure reading the input or writing an output file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewConfigurationError builds a ConfigurationError wrapping err with a formatted detail.
func NewConfigurationError(collection, operation string, err error, format string, args ...any) *ConfigurationError {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &ConfigurationError{Collection: collection, Operation: operation, Err: err}
}

func describe(collection, operation string) string {
	var parts []string
	if strings.TrimSpace(collection) != "" {
		parts = append(parts, "collection="+collection)
	}
	if strings.TrimSpace(operation) != "" {
		parts = append(parts, "operation="+operation)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, " ") + ")"
}
