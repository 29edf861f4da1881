// Package config provides the editor-wide configuration store that packages
// read and write through dotted key paths.
//
// Values live in a single JSON document. Key paths such as
// "core.disabledPackages" or "tree-view.hideIgnoredNames" address nested
// objects; reads go through gjson and writes through sjson, so a write to a
// path creates the intermediate objects it needs.
//
// Packages register configuration schemas under their name with SetSchema.
// A registered schema supplies default values for unset paths and
// validates every write under its key path. Schemas use the JSON Schema
// vocabulary with two editor extensions: the "color" type (validated as a
// string) and enum entries written as {"value": ..., "description": ...}.
//
// Scoped settings are values that apply only under a selector (for example
// a grammar scope such as ".source.go"). They are registered per source
// file so that registering the same file twice replaces, rather than
// duplicates, its values.
//
// The store persists to TOML:
//
//	[core]
//	disabledPackages = ["markdown-preview"]
//
//	[tree-view]
//	hideIgnoredNames = true
package config
