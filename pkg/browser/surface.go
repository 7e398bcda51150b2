// Package browser provides the browser-control surface the action layer
// drives. The Surface interface is the boundary: action handlers and the
// domain handler registry depend on it, while Session implements it on top
// of Playwright.
package browser

import "fmt"

// TargetInfo describes the element an action operated on.
type TargetInfo struct {
	Tag     string `json:"tag"`
	Locator string `json:"locator"`
	HTML    string `json:"html"`
}

// ClickResult reports what a click did.
type ClickResult struct {
	Target       TargetInfo
	Text         string
	PageChanged  bool
	NewTabOpened bool
	DownloadPath string
}

// DropdownOption is one option of a native select element.
type DropdownOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Value string `json:"value"`
}

// FetchResult is the response of an in-session HTTP fetch. Fetching through
// the session keeps cookies and authentication intact.
type FetchResult struct {
	Status      int
	ContentType string
	Body        []byte
}

// ElementLookupError is returned when a locator resolves to zero or more
// than one element. Callers branch on NotFound/Ambiguous instead of parsing
// message text.
type ElementLookupError struct {
	Locator string
	Matches int
}

func (e *ElementLookupError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no element matches locator %q", e.Locator)
	}
	return fmt.Sprintf("locator %q is ambiguous: %d elements match", e.Locator, e.Matches)
}

// NotFound reports whether the lookup matched nothing.
func (e *ElementLookupError) NotFound() bool { return e.Matches == 0 }

// Ambiguous reports whether the lookup matched more than one element.
func (e *ElementLookupError) Ambiguous() bool { return e.Matches > 1 }

// Surface is the browser-control boundary consumed by action handlers and
// first-visit domain handlers. Implementations must not assume exclusive
// access; the dispatcher does not serialize handler execution.
type Surface interface {
	// CurrentURL returns the live URL of the active document. It must not
	// be a cached value: navigation actions change it between requests.
	CurrentURL() string

	Navigate(url string) error
	GoBack() error
	GoForward() error

	// Click resolves the locator strictly (one element) and clicks it.
	Click(locator string) (*ClickResult, error)

	// Fill resolves the locator strictly and types text into it.
	Fill(locator, text string) (*TargetInfo, error)

	// Press sends a key or chord (e.g. "Enter", "Control+Shift+T").
	Press(keys string) error

	// Evaluate runs JavaScript against the active document.
	Evaluate(js string) (interface{}, error)

	// ScrollToText scrolls the first visible occurrence of text into view.
	// Returns false when the text is not present or not visible.
	ScrollToText(text string) (bool, error)

	OpenTab(url string) error
	SwitchTab(index int) error
	TabCount() int

	// Content returns the serialized HTML of the active document.
	Content() (string, error)

	// Fetch re-requests a URL inside the session (cookies preserved).
	Fetch(url string) (*FetchResult, error)

	DropdownOptions(locator string) ([]DropdownOption, error)
	SelectOption(locator, label string) ([]string, error)
}
