package packages

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sort"
)

// registerDeserializerMethods registers a deserializer for each entry of
// metadata.deserializers. Deserializing requires and initializes the main
// module and marks the package as deserialized, which disables deferred
// activation.
func (p *Package) registerDeserializerMethods() {
	for name, method := range p.metadata.Deserializers {
		p.host.Deserializers.Add(name, p.name, func(ctx context.Context, state map[string]any) (any, error) {
			if err := p.requireMainModule(ctx); err != nil {
				return nil, err
			}
			if err := p.initializeIfNeeded(ctx); err != nil {
				return nil, err
			}

			p.mu.Lock()
			p.deserialized = true
			mm := p.mainModule
			p.mu.Unlock()

			if mm == nil {
				return nil, fmt.Errorf("%w: %s", ErrNoMainModule, p.name)
			}
			if !mm.Has(method) {
				return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, p.name, method)
			}
			return mm.Call(ctx, method, state)
		})
	}
}

// activateCoreStartupServices provides the core startup services the
// package declares while it loads. They are provided once.
func (p *Package) activateCoreStartupServices(ctx context.Context) error {
	var names []string
	for _, name := range CoreStartupServices {
		if _, ok := p.metadata.ProvidedServices[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}

	p.mu.Lock()
	provided := p.coreServicesProvided
	p.coreServicesProvided = true
	p.mu.Unlock()
	if provided {
		return nil
	}

	if err := p.requireMainModule(ctx); err != nil {
		return err
	}
	for _, name := range names {
		if err := p.provideService(ctx, name, p.metadata.ProvidedServices[name]); err != nil {
			return err
		}
	}
	return nil
}

// activateServices provides and consumes the services declared in
// package.json. Versions whose method the main module lacks are skipped.
func (p *Package) activateServices(ctx context.Context) error {
	p.mu.Lock()
	coreProvided := p.coreServicesProvided
	mm := p.mainModule
	p.mu.Unlock()
	if mm == nil {
		return nil
	}

	for _, name := range sortedKeys(p.metadata.ProvidedServices) {
		if coreProvided && slices.Contains(CoreStartupServices, name) {
			continue
		}
		if err := p.provideService(ctx, name, p.metadata.ProvidedServices[name]); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(p.metadata.ConsumedServices) {
		versions := p.metadata.ConsumedServices[name].Versions
		for _, versionRange := range sortedKeys(versions) {
			method := versions[versionRange]
			if !mm.Has(method) {
				continue
			}
			dispose, err := p.host.Services.Consume(name, versionRange, func(service any) {
				if _, err := mm.Call(ctx, method, service); err != nil {
					p.handleError(StageService, fmt.Sprintf("Failed to consume the %s service in the %s package", name, p.name), err)
				}
			})
			if err != nil {
				return err
			}
			p.addDisposable(dispose)
		}
	}
	return nil
}

func (p *Package) provideService(ctx context.Context, name string, spec ServiceSpec) error {
	mm := p.MainModule()
	if mm == nil {
		return nil
	}
	for _, version := range sortedKeys(spec.Versions) {
		method := spec.Versions[version]
		if !mm.Has(method) {
			continue
		}
		service, err := mm.Call(ctx, method)
		if err != nil {
			return fmt.Errorf("providing %s@%s: %w", name, version, err)
		}
		dispose, err := p.host.Services.Provide(name, version, service)
		if err != nil {
			return err
		}
		p.addDisposable(dispose)
	}
	return nil
}

func (p *Package) addDisposable(dispose func()) {
	if dispose == nil {
		return
	}
	p.mu.Lock()
	p.disposables = append(p.disposables, dispose)
	p.mu.Unlock()
}

func (p *Package) registerURIHandler() {
	h := p.metadata.URIHandler
	if h == nil || h.Method == "" {
		return
	}
	p.addDisposable(p.host.URIHandlers.Register(p.name, p.HandleURI))
}

// HandleURI activates the package, immediately even when activation is
// deferred, and passes uri to the main module's URI handler method.
func (p *Package) HandleURI(ctx context.Context, uri string) error {
	h := p.metadata.URIHandler
	if h == nil || h.Method == "" {
		return fmt.Errorf("%w: %s has no uri handler", ErrMethodNotFound, p.name)
	}

	done := p.Activate()
	p.requestActivation("uri")
	if _, err := done.Wait(ctx); err != nil {
		return err
	}

	mm := p.MainModule()
	if mm == nil {
		return fmt.Errorf("%w: %s", ErrNoMainModule, p.name)
	}
	if !mm.Has(h.Method) {
		return fmt.Errorf("%w: %s.%s", ErrMethodNotFound, p.name, h.Method)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("parse uri %q: %w", uri, err)
	}
	query := make(map[string]any, len(parsed.Query()))
	for k, v := range parsed.Query() {
		query[k] = v[0]
	}
	_, err = mm.Call(ctx, h.Method, map[string]any{
		"scheme": parsed.Scheme,
		"host":   parsed.Host,
		"path":   parsed.Path,
		"query":  query,
	}, uri)
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
