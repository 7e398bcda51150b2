// Package domains runs one-shot handlers the first time a host is visited
// in a session: cookie banner dismissal, login bootstrapping, and similar
// per-site setup that should happen once and never again until reset.
package domains

import (
	"fmt"
	"sync"

	"github.com/driftware/pilot/pkg/browser"
	"github.com/driftware/pilot/pkg/logging"
	"github.com/driftware/pilot/pkg/patterns"
)

// Handler is a first-visit hook executed against the browser surface.
type Handler func(surface browser.Surface) error

type registration struct {
	pattern string
	handler Handler
}

// Registry maps location patterns to first-visit handlers. Unlike the
// action registry, overlapping patterns do not accumulate: the first
// registered pattern that matches wins, because a host gets exactly one
// setup handler.
type Registry struct {
	mu       sync.Mutex
	handlers []registration
	visited  map[string]bool
	log      *logging.Logger
}

// NewRegistry creates an empty registry. A nil logger is replaced with a
// discarding one.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Discard("domains")
	}
	return &Registry{
		visited: make(map[string]bool),
		log:     log,
	}
}

// Register adds a handler for a location pattern. Registration order is
// significant: FindHandler returns the first match.
func (r *Registry) Register(pattern string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, registration{pattern: pattern, handler: handler})
	r.log.Debugf("registered first-visit handler for pattern %q", pattern)
}

// FindHandler returns the first registered handler whose pattern matches
// location, or nil when none does.
func (r *Registry) FindHandler(location string) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.handlers {
		if patterns.Matches(location, reg.pattern) {
			return reg.handler
		}
	}
	return nil
}

// CheckAndExecute reads the surface's current location and, if its host has
// not been handled this session, runs the matching handler once and records
// the host. Hosts without a matching handler are not recorded, so a handler
// registered later still gets its first-visit shot.
func (r *Registry) CheckAndExecute(surface browser.Surface) error {
	location := surface.CurrentURL()
	host := patterns.Host(location)
	if host == "" {
		return nil
	}

	r.mu.Lock()
	if r.visited[host] {
		r.mu.Unlock()
		r.log.Debugf("host %s already handled, skipping", host)
		return nil
	}
	var handler Handler
	for _, reg := range r.handlers {
		if patterns.Matches(location, reg.pattern) {
			handler = reg.handler
			break
		}
	}
	r.mu.Unlock()

	if handler == nil {
		return nil
	}

	r.log.Infof("executing first-visit handler for host %s", host)
	if err := handler(surface); err != nil {
		return fmt.Errorf("first-visit handler for %s failed: %w", host, err)
	}

	r.mu.Lock()
	r.visited[host] = true
	r.mu.Unlock()
	return nil
}

// Visited reports whether a host has already been handled this session.
func (r *Registry) Visited(host string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visited[host]
}

// Reset clears the visited-host set.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visited = make(map[string]bool)
	r.log.Debugf("reset visited hosts")
}
