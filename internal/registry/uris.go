package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dshills/packhost/internal/host"
)

// ErrNoURIHandler is returned when no package handles a URI.
var ErrNoURIHandler = errors.New("no URI handler")

// URIHandlers routes URIs of the form <scheme>://<package-name>/... to the
// handler registered by that package.
type URIHandlers struct {
	handlers bySource[host.URIHandlerFunc]
}

// NewURIHandlers creates an empty URI handler registry.
func NewURIHandlers() *URIHandlers {
	return &URIHandlers{}
}

// Register installs fn for packageName, replacing an earlier handler.
func (u *URIHandlers) Register(packageName string, fn host.URIHandlerFunc) func() {
	u.handlers.put(packageName, fn)
	return func() { u.handlers.remove(packageName) }
}

// Has reports whether packageName has a handler.
func (u *URIHandlers) Has(packageName string) bool {
	_, ok := u.handlers.get(packageName)
	return ok
}

// Handle routes uri to the package named by its host component.
func (u *URIHandlers) Handle(ctx context.Context, uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("parse uri %q: %w", uri, err)
	}
	fn, ok := u.handlers.get(parsed.Host)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoURIHandler, parsed.Host)
	}
	return fn(ctx, uri)
}
