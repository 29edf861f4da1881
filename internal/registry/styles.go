package registry

import (
	"sort"

	"github.com/dshills/packhost/internal/host"
)

// Styles holds stylesheets by source path.
type Styles struct {
	sheets bySource[host.StyleSheet]
}

// NewStyles creates an empty style registry.
func NewStyles() *Styles {
	return &Styles{}
}

// AddStyleSheet registers sheet, replacing a sheet with the same source path.
func (s *Styles) AddStyleSheet(sheet host.StyleSheet) {
	s.sheets.put(sheet.SourcePath, sheet)
}

// RemoveStyleSheet drops the sheet registered for sourcePath.
func (s *Styles) RemoveStyleSheet(sourcePath string) {
	s.sheets.remove(sourcePath)
}

// StyleSheets returns the sheets ordered by priority, then registration.
func (s *Styles) StyleSheets() []host.StyleSheet {
	sheets := s.sheets.values()
	sort.SliceStable(sheets, func(i, j int) bool {
		return sheets[i].Priority < sheets[j].Priority
	})
	return sheets
}
