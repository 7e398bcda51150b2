package actions

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/driftware/pilot/pkg/logging"
	"github.com/driftware/pilot/pkg/patterns"
)

// Registry holds the registered action descriptors and computes which of
// them apply at a given location. Registration happens during a fixed
// initialization phase; afterwards the table is only read.
type Registry struct {
	mu          sync.RWMutex
	descriptors []*Descriptor
	byName      map[string]*Descriptor
	log         *logging.Logger
}

// NewRegistry creates an empty registry. A nil logger is replaced with a
// discarding one.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Discard("actions")
	}
	return &Registry{
		byName: make(map[string]*Descriptor),
		log:    log,
	}
}

// Register adds a descriptor. Names must be unique and handlers non-nil.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("action descriptor requires a name")
	}
	if d.Handler == nil {
		return fmt.Errorf("action %q requires a handler", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("action %q already registered", d.Name)
	}

	copied := d
	r.descriptors = append(r.descriptors, &copied)
	r.byName[d.Name] = &copied
	r.log.Debugf("registered action %q (%d patterns)", d.Name, len(d.Patterns))
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Names returns all registered action names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		names = append(names, d.Name)
	}
	return names
}

// ResolveAllowed computes the set of actions permitted at location, in
// registration order. A descriptor contributes when it has no location
// patterns, or when at least one of its patterns matches. Every matching
// descriptor contributes: the result is a union across all applicable
// scopes, never a single best-match pick.
func (r *Registry) ResolveAllowed(location string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if len(d.Patterns) == 0 || patterns.MatchesAny(location, d.Patterns) {
			allowed = append(allowed, d.Name)
		}
	}
	return allowed
}

// Describe renders a prompt-facing listing of the allowed actions only.
// Callers cannot discover out-of-scope actions through this listing.
func (r *Registry) Describe(allowed []string) string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, d := range r.descriptors {
		if !allowedSet[d.Name] {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.promptDescription())
	}
	return sb.String()
}

// promptDescription renders one action's prompt line.
func (d *Descriptor) promptDescription() string {
	properties := d.Schema["properties"]
	rendered, err := json.Marshal(properties)
	if err != nil || properties == nil {
		rendered = []byte("{}")
	}
	return fmt.Sprintf("%s: \n{%s: %s}", d.Description, d.Name, rendered)
}

// BuildRequestSchema constructs, for the given allowed set, a request
// schema whose only valid fields are the allowed action names. An action
// outside the allowed set is structurally unrepresentable in a request
// validated against this schema, not merely rejected at runtime.
func (r *Registry) BuildRequestSchema(allowed []string) map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	properties := make(map[string]interface{}, len(allowed))
	for _, name := range allowed {
		if d, ok := r.byName[name]; ok {
			properties[name] = d.Schema
		}
	}

	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
		"minProperties":        1,
		"maxProperties":        1,
	}
}
