package packages

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/packhost/internal/async"
	"github.com/dshills/packhost/internal/event"
	"go.uber.org/zap"
)

// Activate starts grammar loading and activation, each at most once, and
// returns a promise that settles when grammars, settings and activation
// have all settled. It rejects as soon as one of them rejects. The same
// promise is returned until a later Load restarts settings loading.
//
// The call that starts activation registers the package resources and,
// unless activation is deferred, activates the main module before
// returning.
func (p *Package) Activate() *async.Promise[struct{}] {
	grammars := p.grammarsPromise.Get(p.loadGrammars)

	started := false
	activation := p.activationPromise.Get(func() *async.Promise[struct{}] {
		started = true
		promise := async.New[struct{}]()
		p.mu.Lock()
		p.activation = promise
		p.mu.Unlock()
		return promise
	})
	if started {
		p.startActivation(activation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.combined != nil && p.combinedSettings == p.settingsPromise {
		return p.combined
	}
	var settings async.Settler
	if p.settingsPromise != nil {
		settings = p.settingsPromise
	}
	p.combined = async.All(grammars, settings, activation)
	p.combinedSettings = p.settingsPromise
	return p.combined
}

func (p *Package) startActivation(activation *async.Promise[struct{}]) {
	err := safely(func() error {
		if err := p.activateResources(); err != nil {
			return err
		}
		if p.ActivationShouldBeDeferred() &&
			p.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseWaitingForTrigger)) {
			p.logger.Debug("activation deferred")
			return p.subscribeToDeferredActivation()
		}
		// A strict failure has already rejected the promise.
		_ = p.ActivateNow()
		return nil
	})
	if err == nil {
		return
	}

	pe := p.handleError(StageActivate, fmt.Sprintf("Failed to activate the %s package", p.name), err)
	if p.strict {
		activation.Reject(pe)
		return
	}
	activation.Resolve(struct{}{})
}

// subscribeToDeferredActivation subscribes to every trigger declared in
// package.json. The first trigger to fire activates the package.
func (p *Package) subscribeToDeferredActivation() error {
	m := p.metadata

	selectors := make([]string, 0, len(m.ActivationCommands))
	for selector := range m.ActivationCommands {
		selectors = append(selectors, selector)
	}
	sort.Strings(selectors)

	for _, selector := range selectors {
		for _, command := range m.ActivationCommands[selector] {
			dispose := p.host.Commands.Add(selector, command)
			p.mu.Lock()
			p.placeholders = append(p.placeholders, dispose)
			p.mu.Unlock()

			err := p.subscribe(event.CommandTopic(command), func(ev event.Event) bool {
				if ce, ok := ev.Payload.(event.CommandEvent); ok {
					return ce.Matches(selector)
				}
				return true
			})
			if err != nil {
				return err
			}
		}
	}

	for _, hook := range m.ActivationHooks {
		if err := p.subscribe(event.HookTopic(hook), nil); err != nil {
			return err
		}
	}

	for _, opener := range m.WorkspaceOpeners {
		err := p.subscribe(event.TopicWorkspaceOpen, func(ev event.Event) bool {
			uri, _ := ev.Payload.(string)
			return strings.HasPrefix(uri, opener)
		})
		if err != nil {
			return err
		}
	}

	if p.activateRequested.Load() {
		p.trigger("request")
	}
	if p.host.Hooks != nil {
		for _, hook := range m.ActivationHooks {
			if p.host.Hooks.Triggered(hook) {
				p.trigger(event.HookTopic(hook))
				break
			}
		}
	}

	// A trigger fired while subscribing.
	if p.Phase() != PhaseWaitingForTrigger {
		p.disposeTriggers()
	}
	return nil
}

// disposeTriggers cancels trigger subscriptions and placeholder commands.
func (p *Package) disposeTriggers() {
	p.triggers.Cancel()
	p.mu.Lock()
	placeholders := p.placeholders
	p.placeholders = nil
	p.mu.Unlock()
	for _, dispose := range placeholders {
		dispose()
	}
}

func (p *Package) subscribe(topic string, match func(event.Event) bool) error {
	sub, err := p.host.Triggers.Subscribe(topic, func(_ context.Context, ev event.Event) {
		if match == nil || match(ev) {
			p.trigger(ev.Topic)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	p.triggers.Add(sub)
	return nil
}

// requestActivation ends a deferred wait. A wait still being set up by
// another goroutine ends as soon as its subscriptions are in place.
func (p *Package) requestActivation(reason string) {
	p.activateRequested.Store(true)
	p.trigger(reason)
}

// trigger ends the wait for a deferred trigger. Only the first trigger
// activates; later and re-entrant ones are ignored.
func (p *Package) trigger(reason string) {
	if !p.phase.CompareAndSwap(int32(PhaseWaitingForTrigger), int32(PhaseActivating)) {
		return
	}
	p.logger.Debug("activation triggered", zap.String("trigger", reason))
	_ = p.ActivateNow()
}

// ActivateNow activates the main module without waiting for a trigger and
// settles the activation promise. Failures are reported; in strict mode
// the failure is also returned and rejects the promise.
func (p *Package) ActivateNow() error {
	p.activateMu.Lock()
	defer p.activateMu.Unlock()

	p.phase.Store(int32(PhaseActivating))
	start := time.Now()

	err := safely(func() error {
		return p.activateMainModule(context.Background())
	})

	p.disposeTriggers()

	var pe *PackageError
	if err != nil {
		pe = p.handleError(StageActivate, fmt.Sprintf("Failed to activate the %s package", p.name), err)
	}

	p.mu.Lock()
	p.activateTime = time.Since(start)
	activation := p.activation
	p.mu.Unlock()
	p.phase.Store(int32(PhaseActivated))

	if pe != nil && p.strict {
		if activation != nil {
			activation.Reject(pe)
		}
		return pe
	}
	if activation != nil {
		activation.Resolve(struct{}{})
	}
	return nil
}

func (p *Package) activateMainModule(ctx context.Context) error {
	if p.MainModule() == nil {
		if err := p.requireMainModule(ctx); err != nil {
			return err
		}
	}

	registered, err := p.registerConfigSchemaFromMainModule()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.configSchemaRegisteredOnActivate = registered
	mm := p.mainModule
	activated := p.mainActivated
	p.mu.Unlock()

	p.activateStyleSheets()

	if mm == nil || activated {
		return nil
	}

	start := time.Now()
	if err := p.initializeIfNeeded(ctx); err != nil {
		return err
	}
	if mm.Has("activateConfig") {
		if _, err := mm.Call(ctx, "activateConfig"); err != nil {
			return err
		}
	}
	if mm.Has("activate") {
		if _, err := mm.Call(ctx, "activate", p.packageState()); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.mainActivated = true
	p.mu.Unlock()
	p.metrics.observeActivate(p.name, time.Since(start))
	p.logger.Info("package activated", zap.Duration("duration", time.Since(start)))

	return p.activateServices(ctx)
}
