package packages

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Loader discovers packages in the filesystem.
type Loader struct {
	mu sync.RWMutex

	// Search paths, checked in order; the first package with a name wins.
	paths []string

	// bundledPath holds packages that ship with the host. It is searched
	// after paths.
	bundledPath string

	discovered map[string]*Info
}

// Info describes a discovered package.
type Info struct {
	Name     string
	Path     string
	Metadata *Metadata
	Bundled  bool
	Error    error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the package search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// WithBundledPath sets the directory of bundled packages.
func WithBundledPath(path string) LoaderOption {
	return func(l *Loader) {
		l.bundledPath = path
	}
}

// NewLoader creates a new package loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:      DefaultPackagePaths(),
		discovered: make(map[string]*Info),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultPackagePaths returns the default package search paths.
func DefaultPackagePaths() []string {
	paths := make([]string, 0, 2)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "packhost", "packages"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".packhost", "packages"))
	}
	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths...)
}

// IsBundledPath reports whether path lies inside the bundled package
// directory.
func (l *Loader) IsBundledPath(path string) bool {
	if l.bundledPath == "" {
		return false
	}
	rel, err := filepath.Rel(l.bundledPath, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Discover finds all packages in the search paths, sorted by name.
func (l *Loader) Discover() ([]*Info, error) {
	discovered := make(map[string]*Info)
	for _, base := range l.searchPaths() {
		if err := l.discoverInPath(base, discovered); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	l.discovered = discovered
	l.mu.Unlock()

	infos := make([]*Info, 0, len(discovered))
	for _, info := range discovered {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func (l *Loader) searchPaths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	paths := append([]string(nil), l.paths...)
	if l.bundledPath != "" {
		paths = append(paths, l.bundledPath)
	}
	return paths
}

func (l *Loader) discoverInPath(base string, into map[string]*Info) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading package dir %s: %w", base, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info := l.inspect(filepath.Join(base, entry.Name()))
		if _, exists := into[info.Name]; !exists {
			into[info.Name] = info
		}
	}
	return nil
}

// inspect reads the metadata of the package at dir.
func (l *Loader) inspect(dir string) *Info {
	info := &Info{
		Name:    filepath.Base(dir),
		Path:    dir,
		Bundled: l.IsBundledPath(dir),
	}
	m, err := LoadMetadataFromDir(dir)
	if err != nil {
		info.Error = fmt.Errorf("invalid metadata: %w", err)
		return info
	}
	info.Metadata = m
	info.Name = m.Name
	return info
}

// Find returns the package named name, searching the paths if it has not
// been discovered.
func (l *Loader) Find(name string) (*Info, error) {
	l.mu.RLock()
	info, ok := l.discovered[name]
	l.mu.RUnlock()
	if ok {
		return info, nil
	}

	for _, base := range l.searchPaths() {
		dir := filepath.Join(base, name)
		if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
			continue
		}
		info := l.inspect(dir)
		if info.Error != nil {
			return nil, info.Error
		}
		l.mu.Lock()
		l.discovered[info.Name] = info
		l.mu.Unlock()
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
}

// ListNames returns the names of all discovered packages.
func (l *Loader) ListNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.discovered))
	for name := range l.discovered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Errors returns the discovered packages whose metadata failed to load.
func (l *Loader) Errors() []*Info {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var errored []*Info
	for _, info := range l.discovered {
		if info.Error != nil {
			errored = append(errored, info)
		}
	}
	sort.Slice(errored, func(i, j int) bool {
		return errored[i].Name < errored[j].Name
	})
	return errored
}
