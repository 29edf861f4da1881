package registry

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

type provider struct {
	keyPath string
	version *semver.Version
	service any
}

type consumer struct {
	keyPath    string
	constraint *semver.Constraints
	fn         func(service any)
}

// ServiceHub connects service providers to consumers whose version range
// the provided version satisfies.
type ServiceHub struct {
	mu        sync.Mutex
	providers []*provider
	consumers []*consumer
}

// NewServiceHub creates an empty hub.
func NewServiceHub() *ServiceHub {
	return &ServiceHub{}
}

// Provide offers service under keyPath at version and delivers it to
// every matching consumer.
func (h *ServiceHub) Provide(keyPath, version string, service any) (func(), error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("service %s: invalid version %q: %w", keyPath, version, err)
	}
	p := &provider{keyPath: keyPath, version: v, service: service}

	h.mu.Lock()
	h.providers = append(h.providers, p)
	var matched []*consumer
	for _, c := range h.consumers {
		if c.keyPath == keyPath && c.constraint.Check(v) {
			matched = append(matched, c)
		}
	}
	h.mu.Unlock()

	for _, c := range matched {
		c.fn(service)
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, existing := range h.providers {
			if existing == p {
				h.providers = append(h.providers[:i], h.providers[i+1:]...)
				return
			}
		}
	}, nil
}

// Consume calls fn with every provided service under keyPath whose version
// satisfies versionRange, now and whenever one is provided later.
func (h *ServiceHub) Consume(keyPath, versionRange string, fn func(service any)) (func(), error) {
	constraint, err := semver.NewConstraint(versionRange)
	if err != nil {
		return nil, fmt.Errorf("service %s: invalid version range %q: %w", keyPath, versionRange, err)
	}
	c := &consumer{keyPath: keyPath, constraint: constraint, fn: fn}

	h.mu.Lock()
	h.consumers = append(h.consumers, c)
	var matched []any
	for _, p := range h.providers {
		if p.keyPath == keyPath && constraint.Check(p.version) {
			matched = append(matched, p.service)
		}
	}
	h.mu.Unlock()

	for _, svc := range matched {
		fn(svc)
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, existing := range h.consumers {
			if existing == c {
				h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
				return
			}
		}
	}, nil
}

// Providers returns the number of providers registered under keyPath.
func (h *ServiceHub) Providers(keyPath string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, p := range h.providers {
		if p.keyPath == keyPath {
			n++
		}
	}
	return n
}
