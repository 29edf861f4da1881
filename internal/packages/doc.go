// Package packages loads and activates editor packages.
//
// A package is a directory with a package.json, optional resource
// directories (keymaps, menus, styles, grammars, settings) and an optional
// Lua main module. Package drives one package through its lifecycle:
//
//	p, err := packages.New(packages.Params{Path: dir, Host: h})
//	p.Load()                        // parse resources, register schema
//	err = p.Activate().Wait(ctx)    // grammars, settings and activation
//
// Load never returns an error; failures are reported through the host
// Notifier and logged. Activate is memoized: the resources are activated
// and the main module is activated at most once, either immediately or,
// when package.json declares activation commands, hooks, workspace openers
// or a deferred URI handler, when the first trigger event arrives.
//
// Manager discovers packages on disk and drives many of them.
package packages
