package event

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrInvalidTopic is returned when a topic is empty.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerPanic is reported to the panic handler when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)
