package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeValidation(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe("", func(context.Context, Event) {})
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = bus.Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestPublishMatchesExactAndPrefix(t *testing.T) {
	bus := NewBus()
	var got []string

	_, err := bus.Subscribe("hook:a", func(_ context.Context, ev Event) { got = append(got, "exact:"+ev.Topic) })
	require.NoError(t, err)
	_, err = bus.Subscribe("hook:*", func(_ context.Context, ev Event) { got = append(got, "prefix:"+ev.Topic) })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), New("hook:a", nil)))
	require.NoError(t, bus.Publish(context.Background(), New("hook:b", nil)))
	require.NoError(t, bus.Publish(context.Background(), New("command:a", nil)))

	assert.Equal(t, []string{"exact:hook:a", "prefix:hook:a", "prefix:hook:b"}, got)
}

func TestPublishEmptyTopic(t *testing.T) {
	assert.ErrorIs(t, NewBus().Publish(context.Background(), Event{}), ErrInvalidTopic)
}

func TestCancelInsideHandler(t *testing.T) {
	bus := NewBus()
	calls := 0

	var sub Subscription
	sub, err := bus.Subscribe("x", func(context.Context, Event) {
		calls++
		sub.Cancel()
	})
	require.NoError(t, err)

	_ = bus.Publish(context.Background(), New("x", nil))
	_ = bus.Publish(context.Background(), New("x", nil))

	assert.Equal(t, 1, calls)
	assert.False(t, sub.IsActive())
	assert.Equal(t, 0, bus.Stats().ActiveSubscribers)
}

func TestCancelledByEarlierHandlerIsSkipped(t *testing.T) {
	bus := NewBus()
	var group Group
	second := 0

	_, err := bus.Subscribe("x", func(context.Context, Event) { group.Cancel() })
	require.NoError(t, err)
	sub, err := bus.Subscribe("x", func(context.Context, Event) { second++ })
	require.NoError(t, err)
	group.Add(sub)

	_ = bus.Publish(context.Background(), New("x", nil))
	assert.Equal(t, 0, second)
}

func TestRepublishFromHandler(t *testing.T) {
	bus := NewBus()
	var order []string

	_, _ = bus.Subscribe("a", func(ctx context.Context, _ Event) {
		order = append(order, "a")
		_ = bus.Publish(ctx, New("b", nil))
	})
	_, _ = bus.Subscribe("b", func(context.Context, Event) { order = append(order, "b") })

	_ = bus.Publish(context.Background(), New("a", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestHandlerPanicRecovered(t *testing.T) {
	var reported error
	bus := NewBus(WithPanicHandler(func(_ Event, err error) { reported = err }))
	after := false

	_, _ = bus.Subscribe("x", func(context.Context, Event) { panic("boom") })
	_, _ = bus.Subscribe("x", func(context.Context, Event) { after = true })

	require.NoError(t, bus.Publish(context.Background(), New("x", nil)))
	assert.True(t, after)
	assert.True(t, errors.Is(reported, ErrHandlerPanic))
	assert.Equal(t, uint64(1), bus.Stats().HandlerPanics)
}

func TestCommandEventMatches(t *testing.T) {
	ev := CommandEvent{Name: "x:y", Scopes: []string{"text-editor", "workspace"}}
	assert.True(t, ev.Matches("workspace"))
	assert.True(t, ev.Matches("*"))
	assert.False(t, ev.Matches("tree-view"))
	assert.Equal(t, "command:x:y", CommandTopic(ev.Name))
	assert.Equal(t, "hook:h", HookTopic("h"))
}
