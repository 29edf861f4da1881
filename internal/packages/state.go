package packages

// Phase is the activation phase of a package.
type Phase int32

// Activation phases.
const (
	// PhaseIdle - Activate has not been called.
	PhaseIdle Phase = iota

	// PhaseWaitingForTrigger - activation is deferred until a trigger fires.
	PhaseWaitingForTrigger

	// PhaseActivating - the main module is being activated.
	PhaseActivating

	// PhaseActivated - activation finished, successfully or not.
	PhaseActivated
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaitingForTrigger:
		return "waiting-for-trigger"
	case PhaseActivating:
		return "activating"
	case PhaseActivated:
		return "activated"
	default:
		return "unknown"
	}
}
