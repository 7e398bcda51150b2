// Package llm defines the summarization collaborator used by the
// extract_content action and provides an OpenAI-backed implementation.
package llm

import (
	"context"
	"errors"
)

// InsufficientContentMarker is the reply a summarizer model returns when a
// page has no usable content (login walls, loaders, blank pages).
const InsufficientContentMarker = "<INSUFFICIENT_CONTENT>"

// ErrInsufficientContent is returned when the model judged the page content
// too thin to extract anything from.
var ErrInsufficientContent = errors.New("page content is insufficient for extraction")

// Summarizer extracts goal-relevant information from page text.
type Summarizer interface {
	// Summarize returns the extraction result for the given goal, or
	// ErrInsufficientContent when the page carries nothing relevant.
	Summarize(ctx context.Context, goal, pageText string) (string, error)
}
