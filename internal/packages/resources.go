package packages

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dshills/packhost/internal/host"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Resource directories inside a package.
const (
	KeymapsDir  = "keymaps"
	MenusDir    = "menus"
	StylesDir   = "styles"
	GrammarsDir = "grammars"
	SettingsDir = "settings"
)

const (
	dataPattern  = "*.{json,yaml,yml,toml}"
	stylePattern = "*.{css,less}"
)

var dataExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// keymapFile is a parsed keymap resource.
type keymapFile struct {
	path   string
	keymap host.Keymap
}

// menuFile is a parsed menu resource.
type menuFile struct {
	path        string
	Menu        []host.MenuItem            `json:"menu" yaml:"menu" toml:"menu"`
	ContextMenu map[string][]host.MenuItem `json:"context-menu" yaml:"context-menu" toml:"context-menu"`
}

// settingsFile holds selector-scoped settings from one file.
type settingsFile struct {
	path   string
	scoped map[string]map[string]any
}

// listResources returns the data files of dir/sub. When names is not
// empty only those files are returned, resolved with or without an
// extension. A missing directory yields no files.
func listResources(dir, sub string, names []string, pattern string) ([]string, error) {
	root := filepath.Join(dir, sub)
	if len(names) > 0 {
		paths := make([]string, 0, len(names))
		for _, name := range names {
			path, err := resolveResource(root, name)
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
		return paths, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	sort.Strings(matches)

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return paths, nil
}

// resolveResource finds name under root, trying the data extensions when
// name has none.
func resolveResource(root, name string) (string, error) {
	path := filepath.Join(root, name)
	if isFile(path) {
		return path, nil
	}
	if filepath.Ext(name) == "" {
		for _, ext := range dataExtensions {
			if isFile(path + ext) {
				return path + ext, nil
			}
		}
	}
	return "", fmt.Errorf("resource %s: %w", path, fs.ErrNotExist)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// decodeFile parses path into v according to its extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".toml":
		err = toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported resource format: %s", path)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func readKeymaps(dir string, names []string) ([]keymapFile, error) {
	paths, err := listResources(dir, KeymapsDir, names, dataPattern)
	if err != nil {
		return nil, err
	}
	files := make([]keymapFile, 0, len(paths))
	for _, path := range paths {
		var km host.Keymap
		if err := decodeFile(path, &km); err != nil {
			return nil, err
		}
		files = append(files, keymapFile{path: path, keymap: km})
	}
	return files, nil
}

func readMenus(dir string, names []string) ([]menuFile, error) {
	paths, err := listResources(dir, MenusDir, names, dataPattern)
	if err != nil {
		return nil, err
	}
	files := make([]menuFile, 0, len(paths))
	for _, path := range paths {
		mf := menuFile{path: path}
		if err := decodeFile(path, &mf); err != nil {
			return nil, err
		}
		files = append(files, mf)
	}
	return files, nil
}

// styleSheetPaths resolves the stylesheets of a package: mainStyleSheet,
// then styleSheets, then an index stylesheet at the root, then every
// stylesheet in the styles directory.
func styleSheetPaths(dir string, m *Metadata) ([]string, error) {
	if m.MainStyleSheet != "" {
		return []string{filepath.Join(dir, m.MainStyleSheet)}, nil
	}
	if len(m.StyleSheets) > 0 {
		paths := make([]string, len(m.StyleSheets))
		for i, name := range m.StyleSheets {
			paths[i] = filepath.Join(dir, StylesDir, name)
		}
		return paths, nil
	}
	for _, index := range []string{"index.less", "index.css"} {
		if path := filepath.Join(dir, index); isFile(path) {
			return []string{path}, nil
		}
	}
	return listResources(dir, StylesDir, nil, stylePattern)
}

var styleContext = regexp.MustCompile(`^[^.]*\.([^.]*)\.`)

func readStyleSheets(dir string, m *Metadata, priority int) ([]host.StyleSheet, error) {
	paths, err := styleSheetPaths(dir, m)
	if err != nil {
		return nil, err
	}
	sheets := make([]host.StyleSheet, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading stylesheet: %w", err)
		}

		// "name.context.less" applies only within context.
		var context string
		if match := styleContext.FindStringSubmatch(filepath.Base(path)); match != nil {
			context = match[1]
		} else if m.Theme == "syntax" {
			context = "text-editor"
		}

		sheets = append(sheets, host.StyleSheet{
			SourcePath: path,
			Source:     string(data),
			Priority:   priority,
			Context:    context,
		})
	}
	return sheets, nil
}

func readGrammar(path, packageName string) (host.Grammar, error) {
	var def map[string]any
	if err := decodeFile(path, &def); err != nil {
		return host.Grammar{}, err
	}
	scope, _ := def["scopeName"].(string)
	if scope == "" {
		return host.Grammar{}, fmt.Errorf("grammar %s has no scopeName", path)
	}

	g := host.Grammar{
		ScopeName:   scope,
		Path:        path,
		PackageName: packageName,
		Definition:  def,
	}
	g.Name, _ = def["name"].(string)
	if fileTypes, ok := def["fileTypes"].([]any); ok {
		for _, ft := range fileTypes {
			if s, ok := ft.(string); ok {
				g.FileTypes = append(g.FileTypes, s)
			}
		}
	}
	return g, nil
}

func readSettings(path string) (settingsFile, error) {
	sf := settingsFile{path: path}
	if err := decodeFile(path, &sf.scoped); err != nil {
		return sf, err
	}
	return sf, nil
}

// activate registers every selector's values with the config store.
func (sf settingsFile) activate(config host.ConfigStore) error {
	selectors := make([]string, 0, len(sf.scoped))
	for selector := range sf.scoped {
		selectors = append(selectors, selector)
	}
	sort.Strings(selectors)

	var errs []error
	for _, selector := range selectors {
		if err := config.SetScoped(sf.path, selector, sf.scoped[selector]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
