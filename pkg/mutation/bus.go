// Package mutation captures DOM change reports emitted by browser-side
// instrumentation and fans them out to subscribers. The Bus is the single
// shared mutable resource of the coordination layer: dispatch cycles open a
// subscription around action execution and collect whatever the page reports
// while the action runs.
package mutation

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/driftware/pilot/pkg/logging"
)

// Kind classifies a change event.
type Kind string

const (
	// KindAdded marks a node inserted into the document.
	KindAdded Kind = "added"

	// KindModified marks a text mutation on an existing node.
	KindModified Kind = "modified"
)

// ChangeEvent is one reported document mutation. The JSON field names match
// the records produced by the injected observer script.
type ChangeEvent struct {
	Kind    Kind   `json:"type"`
	Tag     string `json:"tag"`
	Content string `json:"content"`
	XPath   string `json:"xpath"`
	HTML    string `json:"html"`
}

// dedupKey identifies an event for deduplication. Two events with the same
// tag and content are considered the same observation.
func (e ChangeEvent) dedupKey() string {
	return e.Tag + "\x00" + e.Content
}

// Dedup returns batch with duplicate (tag, content) pairs removed, first
// occurrence wins, order preserved.
func Dedup(batch []ChangeEvent) []ChangeEvent {
	if len(batch) < 2 {
		return batch
	}

	seen := make(map[string]struct{}, len(batch))
	out := batch[:0:0]
	for _, event := range batch {
		key := event.dedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, event)
	}
	return out
}

// Subscriber receives each delivered batch of change events.
type Subscriber func(batch []ChangeEvent)

// Subscription is a subscriber's membership token. Function values are not
// comparable in Go, so idempotent subscribe/unsubscribe is keyed on the
// token identity rather than on the callback itself.
type Subscription struct {
	id string
	fn Subscriber
}

// NewSubscription wraps a callback in a membership token.
func NewSubscription(fn Subscriber) *Subscription {
	return &Subscription{
		id: uuid.New().String(),
		fn: fn,
	}
}

// ID returns the subscription's correlation id, used to attribute logged
// deliveries to a dispatch cycle.
func (s *Subscription) ID() string {
	return s.id
}

// Bus is a concurrency-safe registry of subscribers. One instance is
// constructed at process start and shared by every dispatch cycle; it must
// never be created implicitly as package state.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription
	log  *logging.Logger
}

// NewBus creates a bus. A nil logger is replaced with a discarding one.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.Discard("mutation")
	}
	return &Bus{log: log}
}

// Subscribe adds sub to the subscriber set. Subscribing an already-present
// subscription is a no-op; the subscriber count never double-counts.
func (b *Bus) Subscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.subs {
		if existing == sub {
			return
		}
	}
	b.subs = append(b.subs, sub)
	b.log.Debugf("subscribed %s (count=%d)", sub.id, len(b.subs))
}

// Unsubscribe removes sub from the subscriber set. Removing an absent
// subscription is a no-op, never an error.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.subs {
		if existing == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			b.log.Debugf("unsubscribed %s (count=%d)", sub.id, len(b.subs))
			return
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Reset drops all subscribers. Intended for test isolation.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Notify delivers a batch to every current subscriber. The delivered batch
// carries no duplicate (tag, content) pairs. Delivery walks a snapshot of
// the subscriber list taken under the lock, then invokes each subscriber
// sequentially outside the lock, so concurrent subscribe/unsubscribe cannot
// affect an in-flight notification. A panicking subscriber is isolated and
// logged; it does not stop delivery to the rest.
func (b *Bus) Notify(batch []ChangeEvent) {
	if len(batch) == 0 {
		return
	}
	batch = Dedup(batch)

	b.mu.Lock()
	snapshot := make([]*Subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.deliver(sub, batch)
	}
}

func (b *Bus) deliver(sub *Subscription, batch []ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("subscriber %s panicked during notify: %v", sub.id, r)
		}
	}()
	sub.fn(batch)
}

// Receive is the entry point for the browser-side instrumentation bridge:
// a JSON-encoded array of change records. A payload that fails to decode is
// dropped whole and logged; there is no partial delivery of a malformed
// batch.
func (b *Bus) Receive(payload string) {
	var batch []ChangeEvent
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		b.log.Errorf("dropping malformed change batch: %v", err)
		return
	}
	b.Notify(batch)
}
