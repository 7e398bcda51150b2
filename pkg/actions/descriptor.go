// Package actions coordinates execution of named actions against the live
// document. It holds the action registry (which actions are permitted at
// the current location), the dispatcher (one validate → subscribe → execute
// → drain → unsubscribe → merge cycle per request), and the built-in action
// set.
package actions

import (
	"context"
	"encoding/json"

	"github.com/driftware/pilot/pkg/browser"
	"github.com/driftware/pilot/pkg/config"
	"github.com/driftware/pilot/pkg/llm"
)

// Handler executes one action. Params is the caller-supplied parameter
// object for this action; handlers decode it into their own typed struct.
// The returned value may be a plain string message, an *Outcome, or nil;
// anything else is rejected by the dispatcher as an invalid result.
type Handler func(ctx context.Context, params json.RawMessage, c *Collaborators) (interface{}, error)

// Descriptor declares a registered action. Descriptors are created during
// registry initialization and immutable thereafter.
type Descriptor struct {
	// Name is the unique action identifier, e.g. "click_element".
	Name string

	// Description tells the model what the action does.
	Description string

	// Schema is the JSON schema of the action's parameter object.
	Schema map[string]interface{}

	// Patterns restricts where the action applies. Empty means the action
	// is allowed at every location.
	Patterns []string

	// Handler executes the action.
	Handler Handler
}

// Collaborators carries the injected services handlers operate on. Handlers
// must not assume exclusive access to the browser surface.
type Collaborators struct {
	Browser    browser.Surface
	Summarizer llm.Summarizer
	Settings   config.Settings

	// SensitiveData maps placeholder names to secret values; actions that
	// type text redact their log output when the value is a secret.
	SensitiveData map[string]string

	// FilePaths lists files the session may upload.
	FilePaths []string
}

// BaseSchema builds a JSON schema object with the given properties and
// required field names.
func BaseSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
