// Package app wires the package host together: configuration, logging,
// metrics, the trigger bus, the editor registries and the package manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dshills/packhost/internal/config"
	"github.com/dshills/packhost/internal/event"
	"github.com/dshills/packhost/internal/packages"
	"github.com/dshills/packhost/internal/packages/lua"
	"github.com/dshills/packhost/internal/registry"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// EnvPrefix prefixes the environment variables read by LoadOptions.
const EnvPrefix = "PACKHOST"

// HookStarted is triggered once every package has been activated.
const HookStarted = "core:started"

// Options configures the application.
type Options struct {
	// Paths are the package search paths. Empty means the defaults.
	Paths []string `envconfig:"PATHS"`

	// BundledPath holds packages that ship with the host.
	BundledPath string `envconfig:"BUNDLED_PATH"`

	// ConfigPath is the TOML config file. Empty means the default location.
	ConfigPath string `envconfig:"CONFIG"`

	// LogLevel sets the logging verbosity.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogDevelopment switches to console log output.
	LogDevelopment bool `envconfig:"LOG_DEV"`

	// Strict makes package failures fail manager operations.
	Strict bool `envconfig:"STRICT"`

	// Version is the host version matched against package engine ranges.
	Version string `ignored:"true"`

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer `ignored:"true"`
}

// LoadOptions reads options from PACKHOST_* environment variables.
func LoadOptions() (Options, error) {
	var opts Options
	if err := envconfig.Process(EnvPrefix, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to load options: %w", err)
	}
	return opts, nil
}

// DefaultConfigPath returns ~/.config/packhost/config.toml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".packhost", "config.toml")
	}
	return filepath.Join(home, ".config", "packhost", "config.toml")
}

// Registries holds the in-memory editor registries packages register into.
type Registries struct {
	Keymaps       *registry.Keymaps
	Menus         *registry.Menus
	ContextMenus  *registry.ContextMenus
	Styles        *registry.Styles
	Grammars      *registry.Grammars
	Deserializers *registry.Deserializers
	Services      *registry.ServiceHub
	URIHandlers   *registry.URIHandlers
	Commands      *registry.Commands
	ModuleCache   *registry.ModuleCache
	Transpilers   *registry.Transpilers
	Notifications *registry.Notifications
	State         *registry.StateStore
}

// App is the central coordinator of the package host.
type App struct {
	mu sync.RWMutex

	opts Options

	logger     *zap.Logger
	config     *config.Store
	promReg    *prometheus.Registry
	metrics    *packages.Metrics
	bus        *event.Bus
	registries Registries
	modules    *lua.Loader
	manager    *packages.Manager

	started atomic.Bool
}

// New creates an application from opts and initializes every component.
func New(opts Options) (*App, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = DefaultConfigPath()
	}
	a := &App{opts: opts}
	if err := newBootstrapper(a).bootstrap(); err != nil {
		return nil, err
	}
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration store.
func (a *App) Config() *config.Store { return a.config }

// Bus returns the trigger bus.
func (a *App) Bus() *event.Bus { return a.bus }

// Manager returns the package manager.
func (a *App) Manager() *packages.Manager { return a.manager }

// Registries returns the editor registries.
func (a *App) Registries() Registries { return a.registries }

// Gatherer returns the metrics registry.
func (a *App) Gatherer() prometheus.Gatherer { return a.promReg }

// Options returns the options the application was created with.
func (a *App) Options() Options { return a.opts }

// Start loads every enabled package, activates them and triggers
// HookStarted. Package failures are reported through notifications; the
// returned error is non-nil only in strict mode or when discovery fails.
func (a *App) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	var errs []error
	if err := a.manager.LoadAll(); err != nil {
		errs = append(errs, err)
	}
	if err := a.manager.ActivateAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.manager.TriggerActivationHook(ctx, HookStarted); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("package host started",
		zap.Int("loaded", a.manager.Count()),
		zap.Int("active", len(a.manager.ListActive())))
	return errors.Join(errs...)
}

// SaveConfig writes the configuration store to the config file.
func (a *App) SaveConfig() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.SaveFile(a.opts.ConfigPath)
}

// Shutdown flushes the logger.
func (a *App) Shutdown() {
	_ = a.logger.Sync()
}
