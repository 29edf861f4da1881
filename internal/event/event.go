package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topic prefixes used by the package host.
const (
	// CommandPrefix prefixes topics of dispatched commands.
	CommandPrefix = "command:"

	// HookPrefix prefixes topics of activation hooks.
	HookPrefix = "hook:"

	// TopicWorkspaceOpen is published when the workspace opens a URI.
	TopicWorkspaceOpen = "workspace:open"
)

// Event is a single published message.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string

	// Topic addresses the event.
	Topic string

	// Payload carries topic-specific data. May be nil.
	Payload any

	// Timestamp is when the event was created.
	Timestamp time.Time
}

// New creates an event for topic with the given payload.
func New(topic string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// CommandEvent is the payload of a "command:<name>" event.
type CommandEvent struct {
	// Name is the dispatched command, e.g. "tree-view:toggle".
	Name string

	// Scopes lists the selectors of the dispatch target and its ancestors,
	// innermost first, e.g. ["text-editor", "workspace"].
	Scopes []string
}

// Matches reports whether selector applies to this dispatch.
// The selector "*" matches every dispatch.
func (c CommandEvent) Matches(selector string) bool {
	if selector == "*" {
		return true
	}
	for _, s := range c.Scopes {
		if s == selector {
			return true
		}
	}
	return false
}

// CommandTopic returns the topic for a command name.
func CommandTopic(name string) string {
	return CommandPrefix + name
}

// HookTopic returns the topic for an activation hook name.
func HookTopic(name string) string {
	return HookPrefix + name
}

// matchTopic reports whether pattern matches topic.
func matchTopic(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix)
	}
	return pattern == topic
}
