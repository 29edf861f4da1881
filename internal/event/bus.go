package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Handler receives published events.
type Handler func(ctx context.Context, ev Event)

// PanicHandler is called when a handler panics.
type PanicHandler func(ev Event, err error)

// Bus is a synchronous topic-addressed event bus.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription

	onPanic PanicHandler

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler sets the function called when a handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) {
		b.onPanic = h
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for every topic matched by pattern.
func (b *Bus) Subscribe(pattern string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if pattern == "" {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(b, pattern, handler)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Publish delivers ev to every active subscription matching its topic.
// Handlers run on the calling goroutine, outside the bus lock.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.Topic == "" {
		return ErrInvalidTopic
	}
	b.published.Add(1)

	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if matchTopic(sub.pattern, ev.Topic) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		// A previous handler may have cancelled this subscription.
		if !sub.IsActive() {
			continue
		}
		b.deliver(ctx, sub, ev)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			if b.onPanic != nil {
				b.onPanic(ev, fmt.Errorf("%w: %s: %v", ErrHandlerPanic, sub.pattern, r))
			}
		}
	}()
	sub.handler(ctx, ev)
	b.delivered.Add(1)
}

// remove drops sub from the subscription list.
func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Stats contains bus counters.
type Stats struct {
	EventsPublished   uint64
	EventsDelivered   uint64
	HandlerPanics     uint64
	ActiveSubscribers int
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	active := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		EventsPublished:   b.published.Load(),
		EventsDelivered:   b.delivered.Load(),
		HandlerPanics:     b.panics.Load(),
		ActiveSubscribers: active,
	}
}
