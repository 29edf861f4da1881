package app

import "errors"

// Application errors.
var (
	// ErrInitialization indicates an initialization failure.
	ErrInitialization = errors.New("initialization failed")

	// ErrNotStarted indicates an operation that needs Start to have run.
	ErrNotStarted = errors.New("application not started")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("application already started")
)

// InitError reports which component failed to initialize.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInitialization) match any InitError.
func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}
