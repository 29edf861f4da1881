// Package event provides the in-process event bus the package host uses to
// deliver activation triggers.
//
// Events are addressed by topic. A topic is a string such as
// "command:tree-view:toggle" or "hook:language-go:grammar-used"; a
// subscription pattern either matches a topic exactly or, when it ends in
// "*", matches every topic with that prefix.
//
// Delivery is synchronous: Publish calls every matching handler on the
// publisher's goroutine, in subscription order, after releasing the bus
// lock. Handlers may therefore publish further events or cancel
// subscriptions (including their own) without deadlocking. A panicking
// handler is recovered and counted; it does not stop delivery to the
// remaining handlers.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	sub, err := bus.Subscribe("hook:*", func(ctx context.Context, ev event.Event) {
//	    log.Println("hook fired:", ev.Topic)
//	})
//	if err != nil {
//	    return err
//	}
//	defer sub.Cancel()
//
//	bus.Publish(ctx, event.New("hook:core:loaded-shell-environment", nil))
package event
