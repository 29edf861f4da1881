package registry

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dshills/packhost/internal/host"
)

// ModuleEntry describes a package directory known to the module cache.
type ModuleEntry struct {
	Dir         string
	PackageName string
	Version     string
}

// ModuleCache records package directories so that module lookups can be
// resolved without walking the file system.
type ModuleCache struct {
	dirs bySource[ModuleEntry]
}

// NewModuleCache creates an empty module cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{}
}

// Add records dir as the root of packageName at version.
func (m *ModuleCache) Add(dir, packageName, version string) {
	m.dirs.put(filepath.Clean(dir), ModuleEntry{Dir: filepath.Clean(dir), PackageName: packageName, Version: version})
}

// Lookup returns the entry for dir.
func (m *ModuleCache) Lookup(dir string) (ModuleEntry, bool) {
	return m.dirs.get(filepath.Clean(dir))
}

// Len returns the number of cached directories.
func (m *ModuleCache) Len() int {
	return m.dirs.len()
}

type transpilerEntry struct {
	dir         string
	packageName string
	specs       []host.TranspilerSpec
}

// Transpilers records which transpiler handles which files of a package.
type Transpilers struct {
	byDir bySource[transpilerEntry]
}

// NewTranspilers creates an empty transpiler registry.
func NewTranspilers() *Transpilers {
	return &Transpilers{}
}

// AddTranspilerConfigForPath records specs for files under dir.
func (t *Transpilers) AddTranspilerConfigForPath(dir, packageName string, specs []host.TranspilerSpec) {
	dir = filepath.Clean(dir)
	t.byDir.put(dir, transpilerEntry{dir: dir, packageName: packageName, specs: specs})
}

// TranspilerFor returns the first spec whose glob matches path relative to
// the package directory containing it.
func (t *Transpilers) TranspilerFor(path string) (host.TranspilerSpec, bool) {
	path = filepath.Clean(path)
	for _, e := range t.byDir.values() {
		rel, err := filepath.Rel(e.dir, path)
		if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
			continue
		}
		for _, spec := range e.specs {
			if ok, _ := doublestar.Match(spec.Glob, filepath.ToSlash(rel)); ok {
				return spec, true
			}
		}
	}
	return host.TranspilerSpec{}, false
}
