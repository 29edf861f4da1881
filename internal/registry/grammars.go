package registry

import (
	"path/filepath"
	"strings"

	"github.com/dshills/packhost/internal/host"
)

// Grammars holds grammars by scope name.
type Grammars struct {
	grammars bySource[host.Grammar]
}

// NewGrammars creates an empty grammar registry.
func NewGrammars() *Grammars {
	return &Grammars{}
}

// AddGrammar registers g, replacing a grammar with the same scope name.
func (g *Grammars) AddGrammar(gr host.Grammar) {
	g.grammars.put(gr.ScopeName, gr)
}

// GrammarForScopeName returns the grammar registered for scope.
func (g *Grammars) GrammarForScopeName(scope string) (host.Grammar, bool) {
	return g.grammars.get(scope)
}

// GrammarForPath returns the last registered grammar claiming the file's
// extension or base name.
func (g *Grammars) GrammarForPath(path string) (host.Grammar, bool) {
	base := filepath.Base(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")

	var match host.Grammar
	found := false
	for _, gr := range g.grammars.values() {
		for _, ft := range gr.FileTypes {
			if ft == ext || ft == base {
				match, found = gr, true
			}
		}
	}
	return match, found
}

// ScopeNames returns the registered scope names, sorted.
func (g *Grammars) ScopeNames() []string {
	return g.grammars.keys()
}
