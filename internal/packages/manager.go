package packages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/dshills/packhost/internal/async"
	"github.com/dshills/packhost/internal/event"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Publisher publishes trigger events.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// Manager manages the lifecycle of all packages.
// It handles discovery, loading, activation and trigger dispatching.
type Manager struct {
	mu sync.RWMutex

	loader    *Loader
	host      *Host
	publisher Publisher
	logger    *zap.Logger
	metrics   *Metrics
	strict    bool

	packages  map[string]*Package
	loadOrder []string
	watched   map[string]bool
	hooks     map[string]bool

	// loading serializes LoadPackage per name.
	loading singleflight.Group

	eventHandlers []EventHandler
}

// ManagerConfig configures the package manager.
type ManagerConfig struct {
	// Paths are directories to search for packages.
	Paths []string

	// BundledPath holds packages that ship with the host.
	BundledPath string

	// Strict makes package failures fail manager operations.
	Strict bool

	Logger  *zap.Logger
	Metrics *Metrics
}

// EventHandler handles package manager events.
// Handlers must not block. Panics in handlers are recovered.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents a package manager event.
type ManagerEvent struct {
	Type    ManagerEventType
	Package string
	Error   error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventPackageLoaded is emitted when a package is loaded.
	EventPackageLoaded ManagerEventType = iota
	// EventPackageActivated is emitted when a package's activation settles.
	EventPackageActivated
	// EventPackageError is emitted when loading or activation fails.
	EventPackageError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventPackageLoaded:
		return "loaded"
	case EventPackageActivated:
		return "activated"
	case EventPackageError:
		return "error"
	default:
		return "unknown"
	}
}

// NewManager creates a package manager over h. Triggers are published
// through publisher, which is usually the bus h.Triggers subscribes to.
func NewManager(cfg ManagerConfig, h *Host, publisher Publisher) (*Manager, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, fmt.Errorf("%w: publisher", ErrMissingHost)
	}

	opts := []LoaderOption{WithBundledPath(cfg.BundledPath)}
	if cfg.Paths != nil {
		opts = append(opts, WithPaths(cfg.Paths...))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		loader:    NewLoader(opts...),
		publisher: publisher,
		logger:    logger,
		metrics:   cfg.Metrics,
		strict:    cfg.Strict,
		packages:  make(map[string]*Package),
		watched:   make(map[string]bool),
		hooks:     make(map[string]bool),
	}

	hc := *h
	if hc.Hooks == nil {
		hc.Hooks = m
	}
	if hc.IsBundledPath == nil {
		hc.IsBundledPath = m.loader.IsBundledPath
	}
	m.host = &hc
	return m, nil
}

// Discover searches for available packages.
func (m *Manager) Discover() ([]*Info, error) {
	return m.loader.Discover()
}

// Loader returns the underlying loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// LoadPackage loads a package by name. A package that is already loaded
// is returned as is. Concurrent calls for the same name share one load.
func (m *Manager) LoadPackage(name string) (*Package, error) {
	if p, ok := m.Get(name); ok {
		return p, nil
	}

	v, err, _ := m.loading.Do(name, func() (any, error) {
		if p, ok := m.Get(name); ok {
			return p, nil
		}
		return m.loadPackage(name)
	})
	p, _ := v.(*Package)
	return p, err
}

func (m *Manager) loadPackage(name string) (*Package, error) {
	info, err := m.loader.Find(name)
	if err != nil {
		return nil, err
	}
	if info.Error != nil {
		return nil, info.Error
	}
	if !info.Metadata.SupportsHost(m.host.Version) {
		err := fmt.Errorf("package %q: %w", name, ErrIncompatible)
		m.emitEvent(ManagerEvent{Type: EventPackageError, Package: name, Error: err})
		return nil, err
	}

	bundled := info.Bundled
	p, err := New(Params{
		Path:     info.Path,
		Metadata: info.Metadata,
		Bundled:  &bundled,
		Host:     m.host,
		Logger:   m.logger,
		Metrics:  m.metrics,
		Strict:   m.strict,
	})
	if err != nil {
		return nil, err
	}

	// Metadata may name the package differently from the directory it
	// was found by.
	if existing, ok := m.Get(p.Name()); ok {
		return existing, nil
	}
	p.Load()

	m.mu.Lock()
	if existing, ok := m.packages[p.Name()]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.packages[p.Name()] = p
	m.loadOrder = append(m.loadOrder, p.Name())
	m.mu.Unlock()

	if err := p.LoadError(); err != nil {
		m.emitEvent(ManagerEvent{Type: EventPackageError, Package: p.Name(), Error: err})
		if m.strict {
			return p, err
		}
	}
	m.emitEvent(ManagerEvent{Type: EventPackageLoaded, Package: p.Name()})
	return p, nil
}

// LoadAll loads every discovered package that is not disabled.
func (m *Manager) LoadAll() error {
	infos, err := m.loader.Discover()
	if err != nil {
		return err
	}

	var loadErrors []error
	for _, info := range infos {
		if info.Error != nil {
			m.logger.Warn("skipping invalid package", zap.String("path", info.Path), zap.Error(info.Error))
			m.emitEvent(ManagerEvent{Type: EventPackageError, Package: info.Name, Error: info.Error})
			if m.strict {
				loadErrors = append(loadErrors, fmt.Errorf("%s: %w", info.Name, info.Error))
			}
			continue
		}
		if m.IsDisabled(info.Name) {
			continue
		}
		if _, err := m.LoadPackage(info.Name); err != nil {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", info.Name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d packages: %w", len(loadErrors), errors.Join(loadErrors...))
	}
	return nil
}

// ActivatePackage starts activating a package, loading it first if
// needed, and returns its combined activation promise.
func (m *Manager) ActivatePackage(name string) (*async.Promise[struct{}], error) {
	if m.IsDisabled(name) {
		return nil, fmt.Errorf("package %q: %w", name, ErrPackageDisabled)
	}
	p, err := m.LoadPackage(name)
	if err != nil {
		return nil, err
	}

	promise := p.Activate()
	m.watch(p, promise)
	return promise, nil
}

// ActivateAll activates every loaded, enabled package and waits for the
// ones whose activation is not deferred.
func (m *Manager) ActivateAll(ctx context.Context) error {
	var pending []async.Settler
	var names []string
	for _, p := range m.List() {
		if m.IsDisabled(p.Name()) {
			continue
		}
		promise := p.Activate()
		m.watch(p, promise)
		if p.Phase() == PhaseWaitingForTrigger {
			continue
		}
		pending = append(pending, promise)
		names = append(names, p.Name())
	}

	if err := async.WaitAll(ctx, pending...); err != nil {
		return fmt.Errorf("activating packages %v: %w", names, err)
	}
	return nil
}

// watch emits an event once the package's activation settles.
func (m *Manager) watch(p *Package, promise *async.Promise[struct{}]) {
	m.mu.Lock()
	if m.watched[p.Name()] {
		m.mu.Unlock()
		return
	}
	m.watched[p.Name()] = true
	m.mu.Unlock()

	go func() {
		<-promise.Done()
		if err := promise.Err(); err != nil {
			m.emitEvent(ManagerEvent{Type: EventPackageError, Package: p.Name(), Error: err})
			return
		}
		m.emitEvent(ManagerEvent{Type: EventPackageActivated, Package: p.Name()})
	}()
}

// Enable removes name from the disabled packages list.
func (m *Manager) Enable(name string) error {
	if p, ok := m.Get(name); ok {
		return p.Enable()
	}
	_, err := m.host.Config.RemoveAtKeyPath(KeyDisabledPackages, name)
	return err
}

// Disable adds name to the disabled packages list.
func (m *Manager) Disable(name string) error {
	if p, ok := m.Get(name); ok {
		return p.Disable()
	}
	_, err := m.host.Config.PushAtKeyPath(KeyDisabledPackages, name)
	return err
}

// IsDisabled reports whether name is in the disabled packages list.
func (m *Manager) IsDisabled(name string) bool {
	return m.host.Config.Contains(KeyDisabledPackages, name)
}

// TriggerActivationHook records hook and activates the packages waiting
// for it. Packages activated later see the hook as already fired.
func (m *Manager) TriggerActivationHook(ctx context.Context, hook string) error {
	m.mu.Lock()
	m.hooks[hook] = true
	m.mu.Unlock()
	return m.publisher.Publish(ctx, event.New(event.HookTopic(hook), nil))
}

// Triggered reports whether hook has fired. It implements host.HookHistory.
func (m *Manager) Triggered(hook string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hooks[hook]
}

// DispatchCommand publishes a command dispatched on a target whose
// selectors, innermost first, are scopes.
func (m *Manager) DispatchCommand(ctx context.Context, command string, scopes ...string) error {
	return m.publisher.Publish(ctx, event.New(event.CommandTopic(command), event.CommandEvent{
		Name:   command,
		Scopes: scopes,
	}))
}

// OpenURI publishes a workspace open of uri.
func (m *Manager) OpenURI(ctx context.Context, uri string) error {
	return m.publisher.Publish(ctx, event.New(event.TopicWorkspaceOpen, uri))
}

// HandleURI routes uri to the package named by its host component,
// loading the package if needed.
func (m *Manager) HandleURI(ctx context.Context, uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("parse uri %q: %w", uri, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("uri %q names no package: %w", uri, ErrPackageNotFound)
	}
	p, err := m.LoadPackage(parsed.Host)
	if err != nil {
		return err
	}
	return p.HandleURI(ctx, uri)
}

// Get returns a loaded package by name.
func (m *Manager) Get(name string) (*Package, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.packages[name]
	return p, ok
}

// List returns all loaded packages in load order.
func (m *Manager) List() []*Package {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Package, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		result = append(result, m.packages[name])
	}
	return result
}

// ListActive returns the packages whose main module is activated.
func (m *Manager) ListActive() []*Package {
	var result []*Package
	for _, p := range m.List() {
		if p.IsActivated() {
			result = append(result, p)
		}
	}
	return result
}

// Count returns the number of loaded packages.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.packages)
}

// Subscribe adds an event handler and returns a function removing it.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to keep other indexes valid.
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// emitEvent calls every handler outside the lock, recovering panics.
func (m *Manager) emitEvent(ev ManagerEvent) {
	m.mu.RLock()
	handlers := make([]EventHandler, len(m.eventHandlers))
	copy(handlers, m.eventHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("manager event handler panicked", zap.Any("panic", r))
				}
			}()
			handler(ev)
		}()
	}
}
