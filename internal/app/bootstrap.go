package app

import (
	"github.com/dshills/packhost/internal/config"
	"github.com/dshills/packhost/internal/event"
	"github.com/dshills/packhost/internal/logging"
	"github.com/dshills/packhost/internal/packages"
	"github.com/dshills/packhost/internal/packages/lua"
	"github.com/dshills/packhost/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// bootstrapper handles component initialization with cleanup on failure.
type bootstrapper struct {
	app       *App
	opts      Options
	initOrder []string
}

func newBootstrapper(app *App) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      app.opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initLogger,
		b.initConfig,
		b.initMetrics,
		b.initEventBus,
		b.initRegistries,
		b.initModules,
		b.initManager,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

func (b *bootstrapper) initLogger() error {
	b.app.logger = logging.New(logging.Config{
		Level:       b.opts.LogLevel,
		Development: b.opts.LogDevelopment,
		Output:      b.opts.LogOutput,
	})
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

func (b *bootstrapper) initConfig() error {
	store := config.New()
	if err := store.LoadFile(b.opts.ConfigPath); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	b.app.config = store
	b.initOrder = append(b.initOrder, "config")
	return nil
}

func (b *bootstrapper) initMetrics() error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return &InitError{Component: "metrics", Err: err}
	}
	b.app.promReg = reg
	b.app.metrics = packages.NewMetrics(reg)
	b.initOrder = append(b.initOrder, "metrics")
	return nil
}

func (b *bootstrapper) initEventBus() error {
	logger := b.app.logger
	b.app.bus = event.NewBus(event.WithPanicHandler(func(ev event.Event, err error) {
		logger.Error("trigger handler panicked", zap.String("topic", ev.Topic), zap.Error(err))
	}))
	b.initOrder = append(b.initOrder, "eventBus")
	return nil
}

func (b *bootstrapper) initRegistries() error {
	b.app.registries = Registries{
		Keymaps:       registry.NewKeymaps(),
		Menus:         registry.NewMenus(),
		ContextMenus:  registry.NewContextMenus(),
		Styles:        registry.NewStyles(),
		Grammars:      registry.NewGrammars(),
		Deserializers: registry.NewDeserializers(),
		Services:      registry.NewServiceHub(),
		URIHandlers:   registry.NewURIHandlers(),
		Commands:      registry.NewCommands(),
		ModuleCache:   registry.NewModuleCache(),
		Transpilers:   registry.NewTranspilers(),
		Notifications: registry.NewNotifications(b.app.logger),
		State:         registry.NewStateStore(),
	}
	b.initOrder = append(b.initOrder, "registries")
	return nil
}

// initModules creates the Lua module loader. The editor module is
// registered once the manager exists.
func (b *bootstrapper) initModules() error {
	b.app.modules = lua.NewLoader(lua.WithLogger(b.app.logger.Named("lua")))
	b.initOrder = append(b.initOrder, "modules")
	return nil
}

func (b *bootstrapper) initManager() error {
	r := b.app.registries
	h := &packages.Host{
		Config:        b.app.config,
		Keymaps:       r.Keymaps,
		Menus:         r.Menus,
		ContextMenus:  r.ContextMenus,
		Styles:        r.Styles,
		Grammars:      r.Grammars,
		Deserializers: r.Deserializers,
		Services:      r.Services,
		URIHandlers:   r.URIHandlers,
		Commands:      r.Commands,
		ModuleCache:   r.ModuleCache,
		Transpilers:   r.Transpilers,
		Notifier:      r.Notifications,
		State:         r.State,
		Modules:       b.app.modules,
		Triggers:      b.app.bus,
		Version:       b.opts.Version,
	}

	mgr, err := packages.NewManager(packages.ManagerConfig{
		Paths:       b.opts.Paths,
		BundledPath: b.opts.BundledPath,
		Strict:      b.opts.Strict,
		Logger:      b.app.logger,
		Metrics:     b.app.metrics,
	}, h, b.app.bus)
	if err != nil {
		return &InitError{Component: "manager", Err: err}
	}
	b.app.manager = mgr
	b.app.modules.Register(EditorModule, editorModule(b.app))
	b.initOrder = append(b.initOrder, "manager")
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "logger":
			_ = b.app.logger.Sync()
		case "eventBus":
			b.app.bus = nil
		case "manager":
			b.app.manager = nil
		}
	}
}
