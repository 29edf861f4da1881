// Package host defines the contracts between a package and the editor
// services it registers into.
//
// The package activator only ever talks to these interfaces. The editor
// (or a test) supplies implementations; internal/registry provides
// in-memory ones. Every registration is keyed by a source path or package
// name so that repeating it replaces the earlier registration instead of
// duplicating it.
package host

import (
	"context"

	"github.com/dshills/packhost/internal/event"
)

// ConfigStore is the part of the editor configuration packages use.
type ConfigStore interface {
	Get(keyPath string) any
	Contains(keyPath string, value any) bool
	PushAtKeyPath(keyPath string, value any) (int, error)
	RemoveAtKeyPath(keyPath string, value any) (int, error)
	SetSchema(keyPath string, schema map[string]any) error
	SetScoped(source, selector string, values map[string]any) error
}

// Keymap maps selectors to keystrokes to commands.
type Keymap map[string]map[string]string

// KeymapRegistry holds key bindings grouped by source file.
type KeymapRegistry interface {
	// Add registers bindings from source, replacing earlier bindings from
	// the same source.
	Add(source string, keymap Keymap, priority int)

	// RemoveBindingsFromSource drops every binding from source.
	RemoveBindingsFromSource(source string)
}

// MenuItem is one entry of the application or a context menu.
type MenuItem struct {
	Label   string     `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Command string     `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	Type    string     `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Submenu []MenuItem `json:"submenu,omitempty" yaml:"submenu,omitempty" toml:"submenu,omitempty"`
}

// MenuRegistry holds application menu templates by source.
type MenuRegistry interface {
	Add(source string, items []MenuItem)
}

// ContextMenuRegistry holds context menus, keyed by selector, by source.
type ContextMenuRegistry interface {
	Add(source string, items map[string][]MenuItem)
}

// StyleSheet is a stylesheet contributed by a package.
type StyleSheet struct {
	SourcePath string
	Source     string
	Priority   int
	Context    string
}

// StyleRegistry holds stylesheets by source path.
type StyleRegistry interface {
	AddStyleSheet(sheet StyleSheet)
}

// Grammar is a syntax definition used for highlighting.
type Grammar struct {
	ScopeName   string
	Name        string
	FileTypes   []string
	Path        string
	PackageName string
	Definition  map[string]any
}

// GrammarRegistry holds grammars by scope name.
type GrammarRegistry interface {
	AddGrammar(g Grammar)
}

// DeserializeFunc restores an object from serialized state.
type DeserializeFunc func(ctx context.Context, state map[string]any) (any, error)

// DeserializerRegistry maps deserializer names to functions.
type DeserializerRegistry interface {
	Add(name, packageName string, fn DeserializeFunc)

	// Count returns the number of registered deserializers.
	Count() int
}

// ServiceHub connects service providers to consumers by name and version.
type ServiceHub interface {
	// Provide offers service under keyPath at a semantic version.
	Provide(keyPath, version string, service any) (dispose func(), err error)

	// Consume calls fn with every provided service whose version satisfies
	// versionRange, now and as providers appear.
	Consume(keyPath, versionRange string, fn func(service any)) (dispose func(), err error)
}

// URIHandlerFunc handles a URI routed to a package.
type URIHandlerFunc func(ctx context.Context, uri string) error

// URIHandlerRegistry routes URIs to packages by name.
type URIHandlerRegistry interface {
	Register(packageName string, fn URIHandlerFunc) (dispose func())
}

// CommandRegistry holds commands available under a selector.
type CommandRegistry interface {
	// Add registers command under selector. Adding a placeholder for a
	// command that a package will implement after activation is allowed.
	Add(selector, command string) (dispose func())
}

// ModuleCache records package directory layouts for fast module lookup.
type ModuleCache interface {
	Add(dir, packageName, version string)
}

// TranspilerSpec configures source transformation for matching files.
type TranspilerSpec struct {
	Glob       string         `json:"glob"`
	Transpiler string         `json:"transpiler"`
	Options    map[string]any `json:"options,omitempty"`
}

// TranspilerRegistry records which transpiler handles which package files.
type TranspilerRegistry interface {
	AddTranspilerConfigForPath(dir, packageName string, specs []TranspilerSpec)
}

// ErrorDetail accompanies an error notification.
type ErrorDetail struct {
	PackageName string
	Detail      string
	Stack       string
	Dismissable bool
}

// Notifier surfaces problems to the user.
type Notifier interface {
	AddFatalError(message string, detail ErrorDetail)
	AddError(message string, detail ErrorDetail)
}

// StateStore remembers per-package state across sessions.
type StateStore interface {
	// PackageState returns the serialized state of a package, or nil.
	PackageState(name string) map[string]any

	// CanDeferMainModuleRequire reports whether requiring name's main
	// module was previously found to register nothing at load time.
	CanDeferMainModuleRequire(name, version string) bool
	SetCanDeferMainModuleRequire(name, version string, v bool)
}

// MainModule is a package's loaded entry point.
type MainModule interface {
	// Has reports whether the module exports a callable method.
	Has(method string) bool

	// Call invokes method and returns its first result.
	Call(ctx context.Context, method string, args ...any) (any, error)

	// ConfigSchema returns the configuration schema properties the module
	// exports, or nil.
	ConfigSchema() map[string]any
}

// ModuleLoader loads a main module file.
type ModuleLoader interface {
	Require(ctx context.Context, path string) (MainModule, error)
}

// HookHistory reports activation hooks that have already fired, so that
// packages subscribing late still activate.
type HookHistory interface {
	Triggered(hook string) bool
}

// TriggerSource delivers the events that end deferred activation.
type TriggerSource interface {
	Subscribe(pattern string, handler event.Handler) (event.Subscription, error)
}
