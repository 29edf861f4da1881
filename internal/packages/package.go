package packages

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/packhost/internal/async"
	"github.com/dshills/packhost/internal/event"
	"github.com/dshills/packhost/internal/host"
	"go.uber.org/zap"
)

// PackageType is the kind of package this host loads.
const PackageType = "atom"

// Config key paths read and written by packages.
const (
	KeyDisabledPackages            = "core.disabledPackages"
	KeyPackagesWithKeymapsDisabled = "core.packagesWithKeymapsDisabled"
)

// CoreStartupServices are provided while the package loads instead of when
// it activates.
var CoreStartupServices = []string{"editor.directory-provider"}

// Host bundles the editor services packages register into.
type Host struct {
	Config        host.ConfigStore
	Keymaps       host.KeymapRegistry
	Menus         host.MenuRegistry
	ContextMenus  host.ContextMenuRegistry
	Styles        host.StyleRegistry
	Grammars      host.GrammarRegistry
	Deserializers host.DeserializerRegistry
	Services      host.ServiceHub
	URIHandlers   host.URIHandlerRegistry
	Commands      host.CommandRegistry
	ModuleCache   host.ModuleCache
	Transpilers   host.TranspilerRegistry
	Notifier      host.Notifier
	State         host.StateStore
	Modules       host.ModuleLoader
	Triggers      host.TriggerSource

	// Optional.
	Hooks         host.HookHistory
	IsBundledPath func(path string) bool
	Version       string
}

func (h *Host) validate() error {
	if h == nil {
		return fmt.Errorf("%w: host is nil", ErrMissingHost)
	}
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("Config", h.Config != nil)
	check("Keymaps", h.Keymaps != nil)
	check("Menus", h.Menus != nil)
	check("ContextMenus", h.ContextMenus != nil)
	check("Styles", h.Styles != nil)
	check("Grammars", h.Grammars != nil)
	check("Deserializers", h.Deserializers != nil)
	check("Services", h.Services != nil)
	check("URIHandlers", h.URIHandlers != nil)
	check("Commands", h.Commands != nil)
	check("ModuleCache", h.ModuleCache != nil)
	check("Transpilers", h.Transpilers != nil)
	check("Notifier", h.Notifier != nil)
	check("State", h.State != nil)
	check("Modules", h.Modules != nil)
	check("Triggers", h.Triggers != nil)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingHost, strings.Join(missing, ", "))
	}
	return nil
}

// Params configures a Package.
type Params struct {
	// Path is the package directory.
	Path string

	// Name is used when metadata has no name.
	Name string

	// Metadata is loaded from Path when nil.
	Metadata *Metadata

	// Bundled overrides Host.IsBundledPath.
	Bundled *bool

	Host    *Host
	Logger  *zap.Logger
	Metrics *Metrics

	// Strict makes reported errors fail the operation: Activate rejects
	// and LoadError reports them to callers that check.
	Strict bool
}

// Package loads and activates one package.
type Package struct {
	name     string
	path     string
	metadata *Metadata
	bundled  bool
	host     *Host
	logger   *zap.Logger
	metrics  *Metrics
	strict   bool

	mu sync.Mutex

	mainModule         host.MainModule
	mainModuleRequired bool
	mainInitialized    bool
	mainActivated      bool
	deserialized       bool

	keymaps     []keymapFile
	menus       []menuFile
	styleSheets []host.StyleSheet
	grammars    []host.Grammar
	settings    []settingsFile
	settingsGen int

	keymapActivated      bool
	menusActivated       bool
	stylesheetsActivated bool
	grammarsActivated    bool
	settingsActivated    bool

	configSchemaRegisteredOnLoad     bool
	configSchemaRegisteredOnActivate bool
	coreServicesProvided             bool

	settingsPromise   *async.Promise[struct{}]
	grammarsPromise   async.Lazy[struct{}]
	activationPromise async.Lazy[struct{}]
	activation        *async.Promise[struct{}]

	// combined is the promise Activate returns, rebuilt when a new Load
	// replaces settingsPromise.
	combined         *async.Promise[struct{}]
	combinedSettings *async.Promise[struct{}]

	phase             atomic.Int32
	activateRequested atomic.Bool
	triggers          event.Group
	placeholders      []func()
	disposables       []func()

	requireMu  sync.Mutex
	activateMu sync.Mutex

	loadErr      error
	loadTime     time.Duration
	activateTime time.Duration
}

// New creates a package from params. Metadata is read from the package
// directory when not supplied.
func New(params Params) (*Package, error) {
	if err := params.Host.validate(); err != nil {
		return nil, err
	}
	if params.Path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrPackageNotFound)
	}

	metadata := params.Metadata
	if metadata == nil {
		m, err := LoadMetadataFromDir(params.Path)
		if err != nil {
			return nil, err
		}
		metadata = m
	}

	name := metadata.Name
	if name == "" {
		name = params.Name
	}
	if name == "" {
		name = filepath.Base(params.Path)
	}

	var bundled bool
	switch {
	case params.Bundled != nil:
		bundled = *params.Bundled
	case params.Host.IsBundledPath != nil:
		bundled = params.Host.IsBundledPath(params.Path)
	}

	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Package{
		name:     name,
		path:     params.Path,
		metadata: metadata,
		bundled:  bundled,
		host:     params.Host,
		logger:   logger.With(zap.String("package", name)),
		metrics:  params.Metrics,
		strict:   params.Strict,
	}, nil
}

// Name returns the package name.
func (p *Package) Name() string { return p.name }

// Path returns the package directory.
func (p *Package) Path() string { return p.path }

// Metadata returns the package metadata. It must not be modified.
func (p *Package) Metadata() *Metadata { return p.metadata }

// IsBundled reports whether the package ships with the host.
func (p *Package) IsBundled() bool { return p.bundled }

// Type returns the package kind.
func (p *Package) Type() string { return PackageType }

// StyleSheetPriority returns the priority of the package's stylesheets.
func (p *Package) StyleSheetPriority() int { return 0 }

// Phase returns the activation phase.
func (p *Package) Phase() Phase { return Phase(p.phase.Load()) }

// IsActivated reports whether the main module has been activated.
func (p *Package) IsActivated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mainActivated
}

// MainModule returns the loaded main module, or nil.
func (p *Package) MainModule() host.MainModule {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mainModule
}

// LoadTime returns how long the last Load took.
func (p *Package) LoadTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadTime
}

// ActivateTime returns how long main module activation took.
func (p *Package) ActivateTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activateTime
}

// LoadError returns the error reported by the last Load or Preload, or nil.
func (p *Package) LoadError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

// ConfigSchemaRegisteredOnLoad reports whether Load registered the schema
// declared in package.json.
func (p *Package) ConfigSchemaRegisteredOnLoad() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configSchemaRegisteredOnLoad
}

// ConfigSchemaRegisteredOnActivate reports whether activation registered
// the schema exported by the main module.
func (p *Package) ConfigSchemaRegisteredOnActivate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configSchemaRegisteredOnActivate
}

// Enable removes the package from the disabled packages list.
func (p *Package) Enable() error {
	_, err := p.host.Config.RemoveAtKeyPath(KeyDisabledPackages, p.name)
	return err
}

// Disable adds the package to the disabled packages list.
func (p *Package) Disable() error {
	_, err := p.host.Config.PushAtKeyPath(KeyDisabledPackages, p.name)
	return err
}

// Load registers the package's static resources. Failures are reported,
// never returned; see LoadError.
func (p *Package) Load() *Package {
	start := time.Now()

	var reported error
	if err := safely(p.load); err != nil {
		reported = p.handleError(StageLoad, fmt.Sprintf("Failed to load the %s package", p.name), err)
	}

	d := time.Since(start)
	p.mu.Lock()
	p.loadErr = reported
	p.loadTime = d
	p.mu.Unlock()

	p.metrics.observeLoad(p.name, d)
	p.logger.Debug("package loaded", zap.Duration("duration", d))
	return p
}

func (p *Package) load() error {
	ctx := context.Background()

	p.host.ModuleCache.Add(p.path, p.name, p.metadata.Version)

	if err := p.loadKeymaps(); err != nil {
		return err
	}
	if err := p.loadMenus(); err != nil {
		return err
	}
	if err := p.loadStyleSheets(); err != nil {
		return err
	}
	p.registerDeserializerMethods()
	if err := p.activateCoreStartupServices(ctx); err != nil {
		return err
	}
	p.registerURIHandler()
	p.registerTranspilerConfig()

	registered, err := p.registerConfigSchemaFromMetadata()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.configSchemaRegisteredOnLoad = registered
	p.mu.Unlock()

	p.startSettingsLoad()

	if p.shouldRequireMainModuleOnLoad() && p.MainModule() == nil {
		return p.requireMainModule(ctx)
	}
	return nil
}

// Preload loads a bundled package whose resources are known up front and
// activates its keymaps, menus and settings without waiting for Activate.
func (p *Package) Preload() *Package {
	var reported error
	err := safely(func() error {
		ctx := context.Background()

		if err := p.loadKeymaps(); err != nil {
			return err
		}
		if err := p.loadMenus(); err != nil {
			return err
		}
		p.registerDeserializerMethods()
		if err := p.activateCoreStartupServices(ctx); err != nil {
			return err
		}
		p.registerURIHandler()

		registered, err := p.registerConfigSchemaFromMetadata()
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.configSchemaRegisteredOnLoad = registered
		p.mu.Unlock()

		if err := p.requireMainModule(ctx); err != nil {
			return err
		}
		p.startSettingsLoad()

		p.activateKeymaps()
		p.activateMenus()

		p.mu.Lock()
		files := append([]settingsFile(nil), p.settings...)
		p.settingsActivated = true
		p.mu.Unlock()

		var errs []error
		for _, sf := range files {
			errs = append(errs, sf.activate(p.host.Config))
		}
		return errors.Join(errs...)
	})
	if err != nil {
		reported = p.handleError(StagePreload, fmt.Sprintf("Failed to preload the %s package", p.name), err)
	}

	p.mu.Lock()
	p.loadErr = reported
	p.mu.Unlock()
	return p
}

// ActivationShouldBeDeferred reports whether activation waits for a
// trigger. A package restored by one of its deserializers activates
// immediately.
func (p *Package) ActivationShouldBeDeferred() bool {
	p.mu.Lock()
	deserialized := p.deserialized
	p.mu.Unlock()

	m := p.metadata
	return !deserialized && (m.HasActivationCommands() ||
		m.HasActivationHooks() ||
		m.HasWorkspaceOpeners() ||
		m.HasDeferredURIHandler())
}

func (p *Package) shouldRequireMainModuleOnLoad() bool {
	m := p.metadata
	return !(m.Deserializers != nil ||
		m.ConfigSchema != nil ||
		p.ActivationShouldBeDeferred() ||
		p.host.State.CanDeferMainModuleRequire(p.name, m.Version))
}

// requireMainModule loads the main module once. A package without a main
// module file, or one incompatible with the host, is left without one.
func (p *Package) requireMainModule(ctx context.Context) error {
	p.requireMu.Lock()
	defer p.requireMu.Unlock()

	p.mu.Lock()
	required := p.mainModuleRequired
	p.mu.Unlock()
	if required {
		return nil
	}

	if !p.metadata.SupportsHost(p.host.Version) {
		p.logger.Warn("package is incompatible with this host",
			zap.String("engines", p.metadata.Engines[EngineName]),
			zap.String("host", p.host.Version))
		return nil
	}

	path := p.metadata.MainPath(p.path)
	if !isFile(path) {
		return nil
	}

	p.mu.Lock()
	p.mainModuleRequired = true
	p.mu.Unlock()

	before := p.host.Deserializers.Count()
	mm, err := p.host.Modules.Require(ctx, path)
	if err != nil {
		return fmt.Errorf("requiring main module: %w", err)
	}

	p.mu.Lock()
	p.mainModule = mm
	p.mu.Unlock()

	if p.host.Deserializers.Count() == before {
		p.host.State.SetCanDeferMainModuleRequire(p.name, p.metadata.Version, true)
	}
	p.logger.Debug("main module required", zap.String("path", path))
	return nil
}

func (p *Package) initializeIfNeeded(ctx context.Context) error {
	p.mu.Lock()
	if p.mainInitialized {
		p.mu.Unlock()
		return nil
	}
	p.mainInitialized = true
	mm := p.mainModule
	p.mu.Unlock()

	if mm != nil && mm.Has("initialize") {
		if _, err := mm.Call(ctx, "initialize", p.packageState()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Package) packageState() map[string]any {
	if state := p.host.State.PackageState(p.name); state != nil {
		return state
	}
	return map[string]any{}
}

func (p *Package) registerConfigSchemaFromMetadata() (bool, error) {
	schema := p.metadata.SchemaObject()
	if schema == nil {
		return false, nil
	}
	if err := p.host.Config.SetSchema(p.name, schema); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Package) registerConfigSchemaFromMainModule() (bool, error) {
	p.mu.Lock()
	mm := p.mainModule
	onLoad := p.configSchemaRegisteredOnLoad
	p.mu.Unlock()

	if mm == nil || onLoad {
		return false, nil
	}
	props := mm.ConfigSchema()
	if props == nil {
		return false, nil
	}
	if err := p.host.Config.SetSchema(p.name, map[string]any{"type": "object", "properties": props}); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Package) registerTranspilerConfig() {
	if len(p.metadata.Transpilers) > 0 {
		p.host.Transpilers.AddTranspilerConfigForPath(p.path, p.name, p.metadata.Transpilers)
	}
}

// stackError carries the stack of a recovered panic.
type stackError struct {
	err   error
	stack string
}

func (e *stackError) Error() string { return e.err.Error() }
func (e *stackError) Unwrap() error { return e.err }

// safely runs fn, converting a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &stackError{err: recovered(r), stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// handleError reports a failure to the user and returns it as a
// *PackageError.
func (p *Package) handleError(stage, message string, err error) *PackageError {
	pe := &PackageError{Package: p.name, Stage: stage, Message: message, Err: err}

	detail := host.ErrorDetail{
		PackageName: p.name,
		Detail:      err.Error(),
		Dismissable: true,
	}
	var se *stackError
	if errors.As(err, &se) {
		detail.Stack = se.stack
	}

	p.logger.Error(message, zap.String("stage", stage), zap.Error(err))
	p.metrics.countError(p.name, stage)
	p.host.Notifier.AddFatalError(message, detail)
	return pe
}

// reportResourceError reports a resource file that could not be loaded.
// Such failures never fail the operation that loaded the file.
func (p *Package) reportResourceError(stage, message, path string, err error) {
	p.logger.Error(message, zap.String("stage", stage), zap.String("path", path), zap.Error(err))
	p.metrics.countError(p.name, stage)
	p.host.Notifier.AddFatalError(message, host.ErrorDetail{
		PackageName: p.name,
		Detail:      fmt.Sprintf("%v in %s", err, path),
		Stack:       fmt.Sprintf("at %s:1:1", path),
		Dismissable: true,
	})
}
