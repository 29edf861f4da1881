package event

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscription represents an active event subscription.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Pattern returns the subscribed topic pattern.
	Pattern() string

	// IsActive returns true until the subscription is cancelled.
	IsActive() bool

	// Cancel permanently stops delivery. Safe to call more than once and
	// from inside a handler.
	Cancel()
}

type subscription struct {
	id      string
	pattern string
	handler Handler
	bus     *Bus

	cancelled atomic.Bool
}

func newSubscription(bus *Bus, pattern string, handler Handler) *subscription {
	return &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
		bus:     bus,
	}
}

func (s *subscription) ID() string      { return s.id }
func (s *subscription) Pattern() string { return s.pattern }
func (s *subscription) IsActive() bool  { return !s.cancelled.Load() }

func (s *subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.bus.remove(s)
}

// Group cancels a set of subscriptions together.
// The zero value is ready to use.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

// Add tracks sub for a later Cancel.
func (g *Group) Add(sub Subscription) {
	if sub == nil {
		return
	}
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
}

// Len returns the number of tracked subscriptions.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Cancel cancels every tracked subscription and forgets them.
func (g *Group) Cancel() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
