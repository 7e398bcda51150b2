package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftware/pilot/pkg/browser"
	"github.com/driftware/pilot/pkg/extract"
	"github.com/driftware/pilot/pkg/llm"
)

// Parameter structs for the built-in actions. Each action decodes its own
// params from the raw request field.

// DoneParams finishes the task.
type DoneParams struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
}

// SearchGoogleParams runs a Google query in the current tab.
type SearchGoogleParams struct {
	Query string `json:"query"`
}

// GoToURLParams navigates the current tab.
type GoToURLParams struct {
	URL string `json:"url"`
}

// WaitParams pauses for a number of seconds.
type WaitParams struct {
	Seconds *int `json:"seconds"`
}

// ClickParams clicks the element the locator resolves to.
type ClickParams struct {
	Locator string `json:"locator"`
}

// InputTextParams types text into the element the locator resolves to.
type InputTextParams struct {
	Locator string `json:"locator"`
	Text    string `json:"text"`
}

// SwitchTabParams activates the tab at the given index.
type SwitchTabParams struct {
	TabIndex int `json:"tab_index"`
}

// OpenTabParams opens a new tab at the given URL.
type OpenTabParams struct {
	URL string `json:"url"`
}

// ExtractParams extracts page content relevant to a goal.
type ExtractParams struct {
	Goal string `json:"goal"`
}

// ScrollParams scrolls by an optional pixel amount; nil means one viewport.
type ScrollParams struct {
	Amount *int `json:"amount"`
}

// SendKeysParams sends keyboard input, including chords like
// "Control+Shift+T".
type SendKeysParams struct {
	Keys string `json:"keys"`
}

// ScrollToTextParams scrolls the first occurrence of text into view.
type ScrollToTextParams struct {
	Text string `json:"text"`
}

// DropdownParams identifies a native select element.
type DropdownParams struct {
	Locator string `json:"locator"`
}

// SelectDropdownParams selects a dropdown option by its visible text.
type SelectDropdownParams struct {
	Locator string `json:"locator"`
	Text    string `json:"text"`
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func locatorSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := map[string]interface{}{
		"locator": map[string]interface{}{"type": "string"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return BaseSchema(props, append([]string{"locator"}, required...))
}

// DefaultDescriptors returns the built-in browser action set in its
// canonical registration order.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name: "done",
			Description: "Complete task - with return text and if the task is finished (success=True) " +
				"or not yet completely finished (success=False)",
			Schema: BaseSchema(map[string]interface{}{
				"text":    map[string]interface{}{"type": "string"},
				"success": map[string]interface{}{"type": "boolean"},
			}, []string{"text", "success"}),
			Handler: doneAction,
		},
		{
			Name:        "search_google",
			Description: "Search the query in Google in the current tab. Use specific, concrete queries.",
			Schema: BaseSchema(map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			}, []string{"query"}),
			Handler: searchGoogleAction,
		},
		{
			Name:        "go_to_url",
			Description: "Navigate to URL in the current tab",
			Schema: BaseSchema(map[string]interface{}{
				"url": map[string]interface{}{"type": "string"},
			}, []string{"url"}),
			Handler: goToURLAction,
		},
		{
			Name:        "go_back",
			Description: "Go back to the previous page",
			Schema:      BaseSchema(map[string]interface{}{}, nil),
			Handler:     goBackAction,
		},
		{
			Name:        "go_forward",
			Description: "Go forward to the next page",
			Schema:      BaseSchema(map[string]interface{}{}, nil),
			Handler:     goForwardAction,
		},
		{
			Name:        "wait",
			Description: "Wait for the given number of seconds. Default is 3 seconds.",
			Schema: BaseSchema(map[string]interface{}{
				"seconds": map[string]interface{}{"type": "integer"},
			}, nil),
			Handler: waitAction,
		},
		{
			Name:        "click_element",
			Description: "Click the element matched by the locator",
			Schema:      locatorSchema(nil),
			Handler:     clickAction,
		},
		{
			Name:        "input_text",
			Description: "Type text into the input element matched by the locator",
			Schema: locatorSchema(map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			}, "text"),
			Handler: inputTextAction,
		},
		{
			Name:        "switch_tab",
			Description: "Switch to the tab at the given index",
			Schema: BaseSchema(map[string]interface{}{
				"tab_index": map[string]interface{}{"type": "integer"},
			}, []string{"tab_index"}),
			Handler: switchTabAction,
		},
		{
			Name:        "open_tab",
			Description: "Open URL in a new tab",
			Schema: BaseSchema(map[string]interface{}{
				"url": map[string]interface{}{"type": "string"},
			}, []string{"url"}),
			Handler: openTabAction,
		},
		{
			Name: "extract_content",
			Description: "Extract page content to retrieve specific information from the page, " +
				"e.g. all company names, a specific description, all information about a topic",
			Schema: BaseSchema(map[string]interface{}{
				"goal": map[string]interface{}{"type": "string"},
			}, []string{"goal"}),
			Handler: extractContentAction,
		},
		{
			Name:        "scroll_down",
			Description: "Scroll down the page by pixel amount - if no amount is given, scroll one page",
			Schema: BaseSchema(map[string]interface{}{
				"amount": map[string]interface{}{"type": "integer"},
			}, nil),
			Handler: scrollDownAction,
		},
		{
			Name:        "scroll_up",
			Description: "Scroll up the page by pixel amount - if no amount is given, scroll one page",
			Schema: BaseSchema(map[string]interface{}{
				"amount": map[string]interface{}{"type": "integer"},
			}, nil),
			Handler: scrollUpAction,
		},
		{
			Name: "send_keys",
			Description: "Send strings of special keys like Escape, Backspace, Insert, PageDown, Delete, " +
				"Enter. Also supports shortcuts like Control+o and Control+Shift+T.",
			Schema: BaseSchema(map[string]interface{}{
				"keys": map[string]interface{}{"type": "string"},
			}, []string{"keys"}),
			Handler: sendKeysAction,
		},
		{
			Name:        "scroll_to_text",
			Description: "Scroll to the first occurrence of the given text on the page",
			Schema: BaseSchema(map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			}, []string{"text"}),
			Handler: scrollToTextAction,
		},
		{
			Name:        "get_dropdown_options",
			Description: "Get all options from a native dropdown",
			Schema:      locatorSchema(nil),
			Handler:     dropdownOptionsAction,
		},
		{
			Name:        "select_dropdown_option",
			Description: "Select a dropdown option by the exact text of the option you want to select",
			Schema: locatorSchema(map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			}, "text"),
			Handler: selectDropdownAction,
		},
	}
}

func doneAction(_ context.Context, raw json.RawMessage, _ *Collaborators) (interface{}, error) {
	var p DoneParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return &Outcome{IsDone: true, Success: p.Success, Content: p.Text}, nil
}

func searchGoogleAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p SearchGoogleParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	target := fmt.Sprintf("https://www.google.com/search?q=%s&udm=14", url.QueryEscape(p.Query))
	if err := c.Browser.Navigate(target); err != nil {
		return nil, err
	}
	return &Outcome{
		Content:         fmt.Sprintf("Searched for %q in Google", p.Query),
		IncludeInMemory: true,
		PageChanged:     true,
	}, nil
}

func goToURLAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p GoToURLParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := c.Browser.Navigate(p.URL); err != nil {
		return nil, err
	}
	return &Outcome{
		Content:         fmt.Sprintf("Navigated to %s", p.URL),
		IncludeInMemory: true,
		PageChanged:     true,
	}, nil
}

func goBackAction(_ context.Context, _ json.RawMessage, c *Collaborators) (interface{}, error) {
	if err := c.Browser.GoBack(); err != nil {
		return nil, err
	}
	return &Outcome{Content: "Navigated back", IncludeInMemory: true, PageChanged: true}, nil
}

func goForwardAction(_ context.Context, _ json.RawMessage, c *Collaborators) (interface{}, error) {
	if err := c.Browser.GoForward(); err != nil {
		return nil, err
	}
	return &Outcome{Content: "Navigated forward", IncludeInMemory: true, PageChanged: true}, nil
}

func waitAction(ctx context.Context, raw json.RawMessage, _ *Collaborators) (interface{}, error) {
	var p WaitParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	seconds := 3
	if p.Seconds != nil {
		seconds = *p.Seconds
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(seconds) * time.Second):
	}
	return fmt.Sprintf("Waited for %d seconds", seconds), nil
}

func clickAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p ClickParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	res, err := c.Browser.Click(p.Locator)
	if err != nil {
		var lookup *browser.ElementLookupError
		if errors.As(err, &lookup) {
			return &Outcome{Error: lookup.Error()}, nil
		}
		return nil, err
	}

	msg := fmt.Sprintf("Clicked element %s with text %q", p.Locator, res.Text)
	switch {
	case res.DownloadPath != "":
		msg = fmt.Sprintf("Downloaded file to %s", res.DownloadPath)
	case res.NewTabOpened:
		msg += " - a new tab was opened and switched to"
	}
	return &Outcome{
		Content:         msg,
		IncludeInMemory: true,
		PageChanged:     res.PageChanged,
		Target:          &res.Target,
	}, nil
}

func inputTextAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p InputTextParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	target, err := c.Browser.Fill(p.Locator, p.Text)
	if err != nil {
		var lookup *browser.ElementLookupError
		if errors.As(err, &lookup) {
			return &Outcome{Error: lookup.Error()}, nil
		}
		return nil, err
	}

	shown := p.Text
	if isSensitive(p.Text, c.SensitiveData) {
		shown = "<redacted>"
	}
	return &Outcome{
		Content:         fmt.Sprintf("Input %q into element %s", shown, p.Locator),
		IncludeInMemory: true,
		Target:          target,
	}, nil
}

func isSensitive(text string, secrets map[string]string) bool {
	for _, v := range secrets {
		if v != "" && v == text {
			return true
		}
	}
	return false
}

func switchTabAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p SwitchTabParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := c.Browser.SwitchTab(p.TabIndex); err != nil {
		return nil, err
	}
	return &Outcome{
		Content:         fmt.Sprintf("Switched to tab %d", p.TabIndex),
		IncludeInMemory: true,
		PageChanged:     true,
	}, nil
}

func openTabAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p OpenTabParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := c.Browser.OpenTab(p.URL); err != nil {
		return nil, err
	}
	return &Outcome{
		Content:         fmt.Sprintf("Opened new tab with %s", p.URL),
		IncludeInMemory: true,
		PageChanged:     true,
	}, nil
}

func extractContentAction(ctx context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p ExtractParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	text, err := currentPageText(c)
	if err != nil {
		return nil, err
	}
	text, truncated := extract.TruncateTokens(text, c.Settings.Model, c.Settings.MaxContentTokens)
	if truncated {
		text += "\n\n[content truncated]"
	}

	if c.Summarizer == nil {
		return &Outcome{Content: text, IncludeInMemory: true}, nil
	}

	summary, err := c.Summarizer.Summarize(ctx, p.Goal, text)
	if err != nil {
		if errors.Is(err, llm.ErrInsufficientContent) {
			return &Outcome{Error: fmt.Sprintf("The page does not contain the information needed for goal %q", p.Goal)}, nil
		}
		return nil, err
	}
	return &Outcome{
		Content:         fmt.Sprintf("Extracted from page:\n%s", summary),
		IncludeInMemory: true,
	}, nil
}

// currentPageText returns the readable text of the active document. PDF
// documents are re-fetched inside the session, saved to the download
// directory, and parsed; everything else goes through the HTML flattener.
func currentPageText(c *Collaborators) (string, error) {
	location := c.Browser.CurrentURL()
	if res, err := c.Browser.Fetch(location); err == nil && extract.IsPDF(res.ContentType) {
		path, err := savePDF(location, res.Body, c.Settings.DownloadDir)
		if err != nil {
			return "", err
		}
		text, _, err := extract.PDFText(path)
		return text, err
	}

	html, err := c.Browser.Content()
	if err != nil {
		return "", err
	}
	_, text, err := extract.PageText(html)
	return text, err
}

func savePDF(location string, body []byte, dir string) (string, error) {
	name := "download.pdf"
	if u, err := url.Parse(location); err == nil {
		if base := filepath.Base(u.Path); strings.HasSuffix(strings.ToLower(base), ".pdf") {
			name = base
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("saving pdf: %w", err)
	}
	return path, nil
}

func scrollDownAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	return scrollBy(raw, c, 1)
}

func scrollUpAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	return scrollBy(raw, c, -1)
}

func scrollBy(raw json.RawMessage, c *Collaborators, direction int) (interface{}, error) {
	var p ScrollParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	var js, what string
	if p.Amount != nil {
		js = fmt.Sprintf("window.scrollBy(0, %d);", direction**p.Amount)
		what = fmt.Sprintf("%d pixels", *p.Amount)
	} else {
		js = fmt.Sprintf("window.scrollBy(0, %d * window.innerHeight);", direction)
		what = "one page"
	}
	if _, err := c.Browser.Evaluate(js); err != nil {
		return nil, err
	}

	dir := "down"
	if direction < 0 {
		dir = "up"
	}
	return &Outcome{
		Content:         fmt.Sprintf("Scrolled %s the page by %s", dir, what),
		IncludeInMemory: true,
	}, nil
}

func sendKeysAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p SendKeysParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := c.Browser.Press(p.Keys); err != nil {
		// Unknown key names are retried one rune at a time so literal
		// text still lands.
		if !strings.Contains(err.Error(), "Unknown key") {
			return nil, err
		}
		for _, r := range p.Keys {
			if err := c.Browser.Press(string(r)); err != nil {
				return nil, err
			}
		}
	}
	return &Outcome{
		Content:         fmt.Sprintf("Sent keys: %s", p.Keys),
		IncludeInMemory: true,
	}, nil
}

func scrollToTextAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p ScrollToTextParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	found, err := c.Browser.ScrollToText(p.Text)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Outcome{
			Content:         fmt.Sprintf("Text %q not found or not visible on page", p.Text),
			IncludeInMemory: true,
		}, nil
	}
	return &Outcome{
		Content:         fmt.Sprintf("Scrolled to text: %s", p.Text),
		IncludeInMemory: true,
	}, nil
}

func dropdownOptionsAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p DropdownParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	options, err := c.Browser.DropdownOptions(p.Locator)
	if err != nil {
		var lookup *browser.ElementLookupError
		if errors.As(err, &lookup) {
			return &Outcome{Error: lookup.Error()}, nil
		}
		return nil, err
	}
	if len(options) == 0 {
		return &Outcome{Content: "No options found in dropdown", IncludeInMemory: true}, nil
	}

	var sb strings.Builder
	for _, opt := range options {
		line, _ := json.Marshal(opt.Text)
		fmt.Fprintf(&sb, "%d: text=%s\n", opt.Index, line)
	}
	sb.WriteString("Use the exact text string in select_dropdown_option")
	return &Outcome{Content: sb.String(), IncludeInMemory: true}, nil
}

func selectDropdownAction(_ context.Context, raw json.RawMessage, c *Collaborators) (interface{}, error) {
	var p SelectDropdownParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	selected, err := c.Browser.SelectOption(p.Locator, p.Text)
	if err != nil {
		var lookup *browser.ElementLookupError
		if errors.As(err, &lookup) {
			return &Outcome{Error: lookup.Error()}, nil
		}
		return nil, err
	}
	return &Outcome{
		Content:         fmt.Sprintf("Selected option %q (values %s)", p.Text, strings.Join(selected, ", ")),
		IncludeInMemory: true,
	}, nil
}
