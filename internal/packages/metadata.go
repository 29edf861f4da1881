package packages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/dshills/packhost/internal/host"
)

// MetadataFile is the name of a package's metadata file.
const MetadataFile = "package.json"

// DefaultMain is the main module used when metadata names none.
const DefaultMain = "init.lua"

// EngineName is the key of this host in metadata engines.
const EngineName = "editor"

// Metadata describes a package. It is parsed from package.json.
type Metadata struct {
	// Identity
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`

	// Main module, relative to the package directory (default init.lua).
	Main string `json:"main"`

	// Engines maps host names to the version range the package supports.
	Engines map[string]string `json:"engines"`

	// Resources; empty lists mean "everything in the resource directory".
	Keymaps        []string `json:"keymaps"`
	Menus          []string `json:"menus"`
	MainStyleSheet string   `json:"mainStyleSheet"`
	StyleSheets    []string `json:"styleSheets"`
	Theme          string   `json:"theme"`

	// Deferred activation triggers.
	ActivationCommands map[string][]string `json:"activationCommands"`
	ActivationHooks    []string            `json:"activationHooks"`
	WorkspaceOpeners   []string            `json:"workspaceOpeners"`

	// Deserializers maps deserializer names to main module methods.
	Deserializers map[string]string `json:"deserializers"`

	ProvidedServices map[string]ServiceSpec `json:"providedServices"`
	ConsumedServices map[string]ServiceSpec `json:"consumedServices"`

	URIHandler *URIHandlerSpec `json:"uriHandler"`

	Transpilers []host.TranspilerSpec `json:"transpilers"`

	// ConfigSchema maps setting names to their schemas.
	ConfigSchema map[string]any `json:"configSchema"`

	path string
}

// ServiceSpec declares a provided or consumed service. For provided
// services Versions maps a version to the method returning the service;
// for consumed services it maps a version range to the method receiving it.
type ServiceSpec struct {
	Description string            `json:"description"`
	Versions    map[string]string `json:"versions"`
}

// URIHandlerSpec declares the main module method that handles URIs.
type URIHandlerSpec struct {
	Method string `json:"method"`

	// DeferActivation defaults to true.
	DeferActivation *bool `json:"deferActivation"`
}

// Validation errors.
var (
	ErrMissingName       = fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	ErrInvalidName       = fmt.Errorf("%w: name must be lowercase alphanumeric with - _ or .", ErrInvalidMetadata)
	ErrInvalidVersion    = fmt.Errorf("%w: version must be valid semver", ErrInvalidMetadata)
	ErrInvalidEngine     = fmt.Errorf("%w: engine range must be a valid semver constraint", ErrInvalidMetadata)
	ErrInvalidMain       = fmt.Errorf("%w: main must be a .lua file", ErrInvalidMetadata)
	ErrInvalidConfigType = fmt.Errorf("%w: invalid config property type", ErrInvalidMetadata)
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

var validConfigTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
	"color":   true,
}

// LoadMetadata loads and validates package metadata from a file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	m.path = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMetadataFromDir loads package.json from a package directory. A
// directory without package.json gets minimal metadata named after it.
func LoadMetadataFromDir(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewMetadataMinimal(filepath.Base(dir), dir), nil
	}
	return LoadMetadata(path)
}

// NewMetadataMinimal creates metadata for a package without package.json.
func NewMetadataMinimal(name, dir string) *Metadata {
	return &Metadata{Name: name, Version: "0.0.0", path: dir}
}

// Validate checks that the metadata is valid.
func (m *Metadata) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
		}
	}

	if r, ok := m.Engines[EngineName]; ok {
		if _, err := semver.NewConstraint(r); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidEngine, r)
		}
	}

	if m.Main != "" && filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	for name, prop := range m.ConfigSchema {
		schema, ok := prop.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s.%s is not an object", ErrInvalidConfigType, m.Name, name)
		}
		if err := checkConfigType(m.Name+"."+name, schema["type"]); err != nil {
			return err
		}
	}
	return nil
}

func checkConfigType(key string, t any) error {
	switch v := t.(type) {
	case nil:
		return nil
	case string:
		if !validConfigTypes[v] {
			return fmt.Errorf("%w: %s has type %q", ErrInvalidConfigType, key, v)
		}
		return nil
	case []any:
		for _, item := range v {
			if err := checkConfigType(key, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has type %v", ErrInvalidConfigType, key, v)
	}
}

// Path returns the package directory.
func (m *Metadata) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Metadata) MainPath(dir string) string {
	main := m.Main
	if main == "" {
		main = DefaultMain
	}
	return filepath.Join(dir, main)
}

// SupportsHost reports whether the engines range admits version. Packages
// without a range support every host.
func (m *Metadata) SupportsHost(version string) bool {
	r, ok := m.Engines[EngineName]
	if !ok || version == "" {
		return true
	}
	c, err := semver.NewConstraint(r)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// HasActivationCommands reports whether any selector lists a command.
func (m *Metadata) HasActivationCommands() bool {
	for _, commands := range m.ActivationCommands {
		if len(commands) > 0 {
			return true
		}
	}
	return false
}

// HasActivationHooks reports whether activation hooks are declared.
func (m *Metadata) HasActivationHooks() bool {
	return len(m.ActivationHooks) > 0
}

// HasWorkspaceOpeners reports whether workspace openers are declared.
func (m *Metadata) HasWorkspaceOpeners() bool {
	return len(m.WorkspaceOpeners) > 0
}

// HasDeferredURIHandler reports whether a URI handler defers activation.
func (m *Metadata) HasDeferredURIHandler() bool {
	return m.URIHandler != nil && m.URIHandler.Method != "" &&
		(m.URIHandler.DeferActivation == nil || *m.URIHandler.DeferActivation)
}

// SchemaObject wraps ConfigSchema into an object schema, or returns nil
// when no schema is declared.
func (m *Metadata) SchemaObject() map[string]any {
	if m.ConfigSchema == nil {
		return nil
	}
	return map[string]any{"type": "object", "properties": m.ConfigSchema}
}

// String returns a string representation of the metadata.
func (m *Metadata) String() string {
	if m.Version == "" {
		return m.Name
	}
	return fmt.Sprintf("%s@%s", m.Name, strings.TrimPrefix(m.Version, "v"))
}
