package actions

import (
	"context"

	"github.com/driftware/pilot/pkg/config"
	"github.com/driftware/pilot/pkg/logging"
	"github.com/driftware/pilot/pkg/mutation"
)

// Controller bundles an action registry with a dispatcher and registers
// the built-in browser actions. It is the main entry point for callers
// that want a ready-to-use action surface.
type Controller struct {
	registry   *Registry
	dispatcher *Dispatcher
	log        *logging.Logger
}

// ControllerOption customizes controller construction.
type ControllerOption func(*controllerOptions)

type controllerOptions struct {
	exclude map[string]bool
}

// WithExcludeActions removes the named built-in actions from the registry.
// Unknown names are ignored.
func WithExcludeActions(names ...string) ControllerOption {
	return func(o *controllerOptions) {
		for _, n := range names {
			o.exclude[n] = true
		}
	}
}

// NewController builds a controller with the default action set registered.
func NewController(bus *mutation.Bus, settings config.Settings, log *logging.Logger, opts ...ControllerOption) (*Controller, error) {
	if log == nil {
		log = logging.Discard("controller")
	}
	o := &controllerOptions{exclude: make(map[string]bool)}
	for _, opt := range opts {
		opt(o)
	}

	registry := NewRegistry(log)
	for _, desc := range DefaultDescriptors() {
		if o.exclude[desc.Name] {
			continue
		}
		if err := registry.Register(desc); err != nil {
			return nil, err
		}
	}

	dispatcher := NewDispatcher(registry, bus, settings.DrainInterval.Std(), log)
	return &Controller{registry: registry, dispatcher: dispatcher, log: log}, nil
}

// Registry exposes the underlying registry for registering custom actions.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// AllowedActions returns the names of actions permitted at the given
// location, in registration order.
func (c *Controller) AllowedActions(location string) []string {
	return c.registry.ResolveAllowed(location)
}

// PromptDescription renders the actions permitted at location in a form
// suitable for inclusion in a model prompt.
func (c *Controller) PromptDescription(location string) string {
	return c.registry.Describe(c.registry.ResolveAllowed(location))
}

// RequestSchema returns the JSON schema constraining requests at location.
func (c *Controller) RequestSchema(location string) map[string]interface{} {
	return c.registry.BuildRequestSchema(c.registry.ResolveAllowed(location))
}

// Act dispatches a single action request.
func (c *Controller) Act(ctx context.Context, req Request, collab *Collaborators) (*Outcome, error) {
	return c.dispatcher.Act(ctx, req, collab)
}
