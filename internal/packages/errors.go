package packages

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrPackageNotFound is returned when a package cannot be located.
	ErrPackageNotFound = errors.New("package not found")

	// ErrNilMetadata is returned when a package has no metadata.
	ErrNilMetadata = errors.New("package metadata is nil")

	// ErrInvalidMetadata is returned when package.json fails validation.
	ErrInvalidMetadata = errors.New("invalid package metadata")

	// ErrMissingHost is returned when a required host service is nil.
	ErrMissingHost = errors.New("host service not provided")

	// ErrNoMainModule is returned when a method is needed from a package
	// that has no main module.
	ErrNoMainModule = errors.New("package has no main module")

	// ErrMethodNotFound is returned when the main module lacks a method
	// named in package.json.
	ErrMethodNotFound = errors.New("main module method not found")

	// ErrPackageDisabled is returned when operating on a disabled package.
	ErrPackageDisabled = errors.New("package is disabled")

	// ErrIncompatible is returned when a package's engine range excludes
	// the running host version.
	ErrIncompatible = errors.New("package is incompatible with this host")

	// ErrPanicked wraps a recovered panic.
	ErrPanicked = errors.New("panic")
)

// Error stages reported in PackageError.
const (
	StageLoad     = "load"
	StagePreload  = "preload"
	StageActivate = "activate"
	StageGrammar  = "grammar"
	StageSettings = "settings"
	StageService  = "service"
	StageURI      = "uri"
)

// PackageError describes a failure isolated to one package.
type PackageError struct {
	Package string
	Stage   string
	Message string
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

// recovered converts a recovered panic value into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrPanicked, r)
}
