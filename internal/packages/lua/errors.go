package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrFunctionNotFound is returned when calling an undefined global.
	ErrFunctionNotFound = errors.New("lua function not found")

	// ErrNotFunction is returned when calling a global that is not a function.
	ErrNotFunction = errors.New("lua global is not a function")

	// ErrModuleNotAllowed is returned by require for names outside the package.
	ErrModuleNotAllowed = errors.New("lua module not allowed")
)
