package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/driftware/pilot/pkg/logging"
	"github.com/driftware/pilot/pkg/mutation"
)

// accumulator collects mutation batches for a single action cycle. Events
// are deduplicated cumulatively across batches so a change reported in an
// earlier batch is not repeated by a later one.
type accumulator struct {
	mu     sync.Mutex
	seen   map[string]bool
	events []mutation.ChangeEvent
}

func newAccumulator() *accumulator {
	return &accumulator{seen: make(map[string]bool)}
}

func (a *accumulator) subscriber() mutation.Subscriber {
	return func(batch []mutation.ChangeEvent) {
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, ev := range batch {
			key := ev.Tag + "\x00" + ev.Content
			if a.seen[key] {
				continue
			}
			a.seen[key] = true
			a.events = append(a.events, ev)
		}
	}
}

// collected returns the accumulated events. The result is never nil even
// when no events arrived, so callers can distinguish "subscribed and saw
// nothing" from "never subscribed".
func (a *accumulator) collected() []mutation.ChangeEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]mutation.ChangeEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Dispatcher executes actions from a Registry while observing page
// mutations for the duration of each action.
type Dispatcher struct {
	registry *Registry
	bus      *mutation.Bus
	drain    time.Duration
	log      *logging.Logger
}

// NewDispatcher wires a dispatcher to a registry and a mutation bus. The
// drain interval is how long the dispatcher keeps listening after a handler
// returns so late-arriving mutation batches are still captured.
func NewDispatcher(registry *Registry, bus *mutation.Bus, drain time.Duration, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Discard("dispatcher")
	}
	if drain <= 0 {
		drain = 500 * time.Millisecond
	}
	return &Dispatcher{registry: registry, bus: bus, drain: drain, log: log}
}

// Act resolves a request to a single action, validates it against the
// browser's current location, and executes it while recording page
// mutations. A successful cycle returns an outcome carrying the merged
// mutation events; a handler failure surfaces as a HandlerError after the
// cycle's subscription has been drained and removed.
func (d *Dispatcher) Act(ctx context.Context, req Request, c *Collaborators) (*Outcome, error) {
	name, params, ok := req.Resolve()
	if !ok {
		return &Outcome{Error: noActionError}, nil
	}

	location := ""
	if c != nil && c.Browser != nil {
		location = c.Browser.CurrentURL()
	}

	// An unregistered name is never a member of the allowed set, so it
	// falls out as a not-allowed outcome like any other out-of-scope action.
	desc, registered := d.registry.Get(name)
	allowed := d.registry.ResolveAllowed(location)
	if !registered || !contains(allowed, name) {
		d.log.Warnf("action %s rejected for location %s", name, location)
		return &Outcome{
			Error: fmt.Sprintf("Action '%s' is not allowed for the current location: %s. Allowed actions: %s",
				name, location, strings.Join(allowed, ", ")),
			IncludeInMemory: true,
		}, nil
	}

	acc := newAccumulator()
	sub := mutation.NewSubscription(acc.subscriber())

	d.log.Infof("executing action %s (cycle %s)", name, sub.ID())
	result, err := d.execute(ctx, desc, params, c, sub)

	// execute's deferred drain closed the subscription before returning,
	// so collected() sees every batch for the cycle.
	events := acc.collected()

	if err != nil {
		return nil, &HandlerError{Action: name, Err: err}
	}
	return d.merge(name, result, events)
}

// execute runs the handler between subscribing sub and draining it. The
// drain-then-unsubscribe ordering holds on every exit path, including
// handler errors: late mutation batches are given a chance to land before
// the subscription is removed.
func (d *Dispatcher) execute(ctx context.Context, desc *Descriptor, params json.RawMessage, c *Collaborators, sub *mutation.Subscription) (interface{}, error) {
	d.bus.Subscribe(sub)
	defer func() {
		time.Sleep(d.drain)
		d.bus.Unsubscribe(sub)
	}()
	return desc.Handler(ctx, params, c)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// merge folds a handler result and the cycle's mutation events into an
// Outcome. Handlers may return nil, a plain string, or an *Outcome.
func (d *Dispatcher) merge(name string, result interface{}, events []mutation.ChangeEvent) (*Outcome, error) {
	switch r := result.(type) {
	case nil:
		return &Outcome{Changes: events}, nil
	case string:
		return &Outcome{Content: r, Changes: events}, nil
	case *Outcome:
		// A typed-nil *Outcome is an empty result, same as a bare nil.
		if r == nil {
			return &Outcome{Changes: events}, nil
		}
		r.Changes = events
		return r, nil
	default:
		return nil, &InvalidResultError{Action: name, Result: result}
	}
}
