package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidPath indicates an empty or malformed key path.
	ErrInvalidPath = errors.New("invalid key path")

	// ErrTypeMismatch indicates the stored value has an unexpected type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrValidationFailed indicates a value fails its schema.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidSchema indicates a schema that cannot be compiled.
	ErrInvalidSchema = errors.New("invalid schema")
)

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
