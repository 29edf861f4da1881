package packages

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/dshills/packhost/internal/async"
	"github.com/dshills/packhost/internal/host"
	"golang.org/x/sync/errgroup"
)

func (p *Package) loadKeymaps() error {
	files, err := readKeymaps(p.path, p.metadata.Keymaps)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.keymaps = files
	p.mu.Unlock()
	return nil
}

func (p *Package) loadMenus() error {
	files, err := readMenus(p.path, p.metadata.Menus)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.menus = files
	p.mu.Unlock()
	return nil
}

func (p *Package) loadStyleSheets() error {
	sheets, err := readStyleSheets(p.path, p.metadata, p.StyleSheetPriority())
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.styleSheets = sheets
	p.mu.Unlock()
	return nil
}

// loadGrammars reads every grammar file concurrently. A file that fails
// to parse is reported and skipped; the promise always resolves.
func (p *Package) loadGrammars() *async.Promise[struct{}] {
	return async.Go(func() (struct{}, error) {
		paths, err := listResources(p.path, GrammarsDir, nil, dataPattern)
		if err != nil {
			p.reportResourceError(StageGrammar, fmt.Sprintf("Failed to load the %s package grammars", p.name), p.path, err)
			return struct{}{}, nil
		}

		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for _, path := range paths {
			g.Go(func() error {
				grammar, err := readGrammar(path, p.name)
				if err != nil {
					p.reportResourceError(StageGrammar, fmt.Sprintf("Failed to load a %s package grammar", p.name), path, err)
					return nil
				}
				p.addLoadedGrammar(grammar)
				return nil
			})
		}
		_ = g.Wait()
		return struct{}{}, nil
	})
}

func (p *Package) addLoadedGrammar(g host.Grammar) {
	p.mu.Lock()
	p.grammars = append(p.grammars, g)
	active := p.grammarsActivated
	p.mu.Unlock()

	if active {
		p.host.Grammars.AddGrammar(g)
	}
}

// startSettingsLoad begins reading settings files and stores the promise
// Activate waits for. Files from an earlier Load still in flight are
// dropped.
func (p *Package) startSettingsLoad() {
	p.mu.Lock()
	p.settings = nil
	p.settingsGen++
	gen := p.settingsGen
	p.mu.Unlock()

	promise := async.Go(func() (struct{}, error) {
		paths, err := listResources(p.path, SettingsDir, nil, dataPattern)
		if err != nil {
			p.reportResourceError(StageSettings, fmt.Sprintf("Failed to load the %s package settings", p.name), p.path, err)
			return struct{}{}, nil
		}
		for _, path := range paths {
			sf, err := readSettings(path)
			if err != nil {
				p.reportResourceError(StageSettings, fmt.Sprintf("Failed to load the %s package settings", p.name), path, err)
				continue
			}
			p.addLoadedSettings(gen, sf)
		}
		return struct{}{}, nil
	})

	p.mu.Lock()
	if p.settingsGen == gen {
		p.settingsPromise = promise
	}
	p.mu.Unlock()
}

func (p *Package) addLoadedSettings(gen int, sf settingsFile) {
	p.mu.Lock()
	if gen != p.settingsGen {
		p.mu.Unlock()
		return
	}
	p.settings = append(p.settings, sf)
	active := p.settingsActivated
	p.mu.Unlock()

	if active {
		if err := sf.activate(p.host.Config); err != nil {
			p.reportResourceError(StageSettings, fmt.Sprintf("Failed to load the %s package settings", p.name), sf.path, err)
		}
	}
}

// activateResources registers keymaps, menus and whatever grammars and
// settings have loaded so far. Later arrivals register as they load.
func (p *Package) activateResources() error {
	if p.host.Config.Contains(KeyPackagesWithKeymapsDisabled, p.name) {
		p.deactivateKeymaps()
	} else {
		p.activateKeymaps()
	}
	p.activateMenus()

	p.mu.Lock()
	var grammars []host.Grammar
	if !p.grammarsActivated {
		p.grammarsActivated = true
		grammars = append(grammars, p.grammars...)
	}
	var settings []settingsFile
	if !p.settingsActivated {
		p.settingsActivated = true
		settings = append(settings, p.settings...)
	}
	p.mu.Unlock()

	for _, g := range grammars {
		p.host.Grammars.AddGrammar(g)
	}
	var errs []error
	for _, sf := range settings {
		errs = append(errs, sf.activate(p.host.Config))
	}
	return errors.Join(errs...)
}

func (p *Package) activateKeymaps() {
	p.mu.Lock()
	if p.keymapActivated {
		p.mu.Unlock()
		return
	}
	p.keymapActivated = true
	files := p.keymaps
	p.mu.Unlock()

	for _, f := range files {
		p.host.Keymaps.Add(f.path, f.keymap, 0)
	}
}

func (p *Package) deactivateKeymaps() {
	p.mu.Lock()
	if !p.keymapActivated {
		p.mu.Unlock()
		return
	}
	p.keymapActivated = false
	files := p.keymaps
	p.mu.Unlock()

	for _, f := range files {
		p.host.Keymaps.RemoveBindingsFromSource(f.path)
	}
}

func (p *Package) activateMenus() {
	p.mu.Lock()
	if p.menusActivated {
		p.mu.Unlock()
		return
	}
	p.menusActivated = true
	files := p.menus
	p.mu.Unlock()

	for _, f := range files {
		if f.ContextMenu != nil {
			p.host.ContextMenus.Add(f.path, f.ContextMenu)
		}
	}
	for _, f := range files {
		if f.Menu != nil {
			p.host.Menus.Add(f.path, f.Menu)
		}
	}
}

func (p *Package) activateStyleSheets() {
	p.mu.Lock()
	if p.stylesheetsActivated {
		p.mu.Unlock()
		return
	}
	p.stylesheetsActivated = true
	sheets := p.styleSheets
	p.mu.Unlock()

	for _, sheet := range sheets {
		p.host.Styles.AddStyleSheet(sheet)
	}
}
