package actions

import (
	"github.com/driftware/pilot/pkg/browser"
	"github.com/driftware/pilot/pkg/mutation"
)

// Outcome is the unified result of one dispatch cycle. It is constructed
// fresh per cycle and owned by the caller after return.
type Outcome struct {
	// IsDone marks the terminal action of a task.
	IsDone bool `json:"is_done,omitempty"`

	// Success qualifies IsDone: whether the task finished successfully.
	Success bool `json:"success,omitempty"`

	// Content is the textual result of the action, when it has one.
	Content string `json:"content,omitempty"`

	// Error describes a terminal validation or execution failure. Terminal
	// validation failures (empty request, action out of scope) are always
	// delivered here rather than as Go errors, so callers can branch.
	Error string `json:"error,omitempty"`

	// IncludeInMemory marks outcomes the caller's memory should retain.
	IncludeInMemory bool `json:"include_in_memory,omitempty"`

	// PageChanged reports that the action changed the current location.
	PageChanged bool `json:"page_changed,omitempty"`

	// Changes lists the DOM mutations observed while the action ran.
	// An empty non-nil slice means a subscription was open and saw
	// nothing; nil means no subscription was ever opened.
	Changes []mutation.ChangeEvent `json:"dom_changes,omitempty"`

	// Target identifies the element the action operated on, when the
	// handler reported one. The dispatcher passes it through untouched.
	Target *browser.TargetInfo `json:"target,omitempty"`
}
