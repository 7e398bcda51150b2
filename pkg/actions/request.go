package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Request is one caller-submitted action invocation: a JSON object whose
// single populated field names the action and carries its parameters.
type Request map[string]json.RawMessage

// ParseRequest decodes a request object.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse action request: %w", err)
	}
	return req, nil
}

// jsonNull matches an explicitly null field, which counts as unpopulated.
var jsonNull = []byte("null")

// Resolve extracts the single populated action from the request. ok is
// false when no field is populated. When more than one field is populated
// the lexicographically first name is chosen, so resolution stays
// deterministic regardless of JSON key order.
func (r Request) Resolve() (name string, params json.RawMessage, ok bool) {
	populated := make([]string, 0, len(r))
	for field, raw := range r {
		if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
			continue
		}
		populated = append(populated, field)
	}
	if len(populated) == 0 {
		return "", nil, false
	}

	sort.Strings(populated)
	name = populated[0]
	return name, r[name], true
}
