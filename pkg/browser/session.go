package browser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/driftware/pilot/pkg/logging"
	"github.com/driftware/pilot/pkg/mutation"
)

// Session is a Playwright-backed Surface. Every page it opens carries the
// injected mutation observer, so DOM changes flow to the shared bus
// regardless of which tab produced them.
type Session struct {
	mu          sync.Mutex
	browser     playwright.Browser
	context     playwright.BrowserContext
	pages       []playwright.Page
	current     int
	bus         *mutation.Bus
	overlayID   string
	downloadDir string
	timeout     float64
	log         *logging.Logger

	lastDownload   string
	lastDownloadAt time.Time
}

var _ Surface = (*Session)(nil)

// newPage opens a page, applies the default timeout, wires download
// tracking, and attaches the mutation observer.
func (s *Session) newPage() (playwright.Page, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(s.timeout)

	page.OnDownload(func(download playwright.Download) {
		path := filepath.Join(s.downloadDir, download.SuggestedFilename())
		if err := download.SaveAs(path); err != nil {
			s.log.Warnf("failed to save download %s: %v", download.SuggestedFilename(), err)
			return
		}
		s.mu.Lock()
		s.lastDownload = path
		s.lastDownloadAt = time.Now()
		s.mu.Unlock()
	})

	if s.bus != nil {
		if err := mutation.Attach(page, s.bus, s.overlayID); err != nil {
			// Observation is best-effort: a page that refuses the script
			// still works for actions, it just reports no changes.
			s.log.Warnf("failed to attach mutation observer: %v", err)
		}
	}
	return page, nil
}

// page returns the active page.
func (s *Session) page() playwright.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[s.current]
}

// CurrentURL returns the live URL of the active page.
func (s *Session) CurrentURL() string {
	return s.page().URL()
}

// Navigate loads url in the active page and waits for the load state.
func (s *Session) Navigate(url string) error {
	page := s.page()
	if _, err := page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitForLoadState(); err != nil {
		return fmt.Errorf("load wait failed: %w", err)
	}
	return nil
}

// GoBack navigates back in the active page's history.
func (s *Session) GoBack() error {
	if _, err := s.page().GoBack(); err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	return nil
}

// GoForward navigates forward in the active page's history.
func (s *Session) GoForward() error {
	if _, err := s.page().GoForward(); err != nil {
		return fmt.Errorf("go forward failed: %w", err)
	}
	return nil
}

// resolve returns a strictly-resolved locator: exactly one match, otherwise
// an *ElementLookupError.
func (s *Session) resolve(locator string) (playwright.Locator, error) {
	loc := s.page().Locator(locator)
	count, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("locator query failed: %w", err)
	}
	if count != 1 {
		return nil, &ElementLookupError{Locator: locator, Matches: count}
	}
	return loc, nil
}

// describe captures tag and markup of a resolved element.
func describe(loc playwright.Locator, locator string) TargetInfo {
	info := TargetInfo{Locator: locator}
	if tag, err := loc.Evaluate("el => el.tagName", nil); err == nil {
		if str, ok := tag.(string); ok {
			info.Tag = str
		}
	}
	if html, err := loc.Evaluate("el => el.outerHTML", nil); err == nil {
		if str, ok := html.(string); ok {
			info.HTML = str
		}
	}
	return info
}

// Click clicks the single element matching locator. The result reports the
// clicked element, whether the location changed, whether a new tab opened
// (the session switches to it), and any download the click produced.
func (s *Session) Click(locator string) (*ClickResult, error) {
	loc, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	page := s.page()
	before := page.URL()
	tabsBefore := len(s.context.Pages())
	clickedAt := time.Now()

	result := &ClickResult{Target: describe(loc, locator)}
	if text, err := loc.TextContent(); err == nil {
		result.Text = strings.TrimSpace(text)
	}

	if err := loc.Click(); err != nil {
		return nil, fmt.Errorf("click failed: %w", err)
	}

	// A click that spawned a tab makes that tab the active document.
	pages := s.context.Pages()
	if len(pages) > tabsBefore {
		s.adoptPages(pages)
		if err := s.SwitchTab(len(pages) - 1); err != nil {
			return nil, err
		}
		result.NewTabOpened = true
		result.PageChanged = true
	} else if page.URL() != before {
		result.PageChanged = true
	}

	s.mu.Lock()
	if s.lastDownloadAt.After(clickedAt) {
		result.DownloadPath = s.lastDownload
	}
	s.mu.Unlock()

	return result, nil
}

// adoptPages registers context pages the session has not seen yet (e.g.
// opened by target=_blank clicks) and attaches observation to them.
func (s *Session) adoptPages(pages []playwright.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[playwright.Page]bool, len(s.pages))
	for _, p := range s.pages {
		known[p] = true
	}
	for _, p := range pages {
		if known[p] {
			continue
		}
		p.SetDefaultTimeout(s.timeout)
		if s.bus != nil {
			if err := mutation.Attach(p, s.bus, s.overlayID); err != nil {
				s.log.Warnf("failed to attach mutation observer to new tab: %v", err)
			}
		}
		s.pages = append(s.pages, p)
	}
}

// Fill types text into the single element matching locator.
func (s *Session) Fill(locator, text string) (*TargetInfo, error) {
	loc, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	info := describe(loc, locator)
	if err := loc.Fill(text); err != nil {
		return nil, fmt.Errorf("fill failed: %w", err)
	}
	return &info, nil
}

// Press sends a key or chord to the active page.
func (s *Session) Press(keys string) error {
	if err := s.page().Keyboard().Press(keys); err != nil {
		return fmt.Errorf("press failed: %w", err)
	}
	return nil
}

// Evaluate runs JavaScript against the active document.
func (s *Session) Evaluate(js string) (interface{}, error) {
	result, err := s.page().Evaluate(js)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return result, nil
}

// ScrollToText scrolls the first visible occurrence of text into view.
func (s *Session) ScrollToText(text string) (bool, error) {
	page := s.page()

	candidates := []playwright.Locator{
		page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(false)}),
		page.Locator(fmt.Sprintf("text=%s", text)),
	}

	for _, loc := range candidates {
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		first := loc.First()
		visible, err := first.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := first.ScrollIntoViewIfNeeded(); err != nil {
			continue
		}
		return true, nil
	}
	return false, nil
}

// OpenTab opens url in a new tab and makes it the active page.
func (s *Session) OpenTab(url string) error {
	page, err := s.newPage()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pages = append(s.pages, page)
	s.current = len(s.pages) - 1
	s.mu.Unlock()

	if _, err := page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// SwitchTab makes the tab at index the active page.
func (s *Session) SwitchTab(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.pages) {
		count := len(s.pages)
		s.mu.Unlock()
		return fmt.Errorf("tab %d does not exist (%d open)", index, count)
	}
	page := s.pages[index]
	s.current = index
	s.mu.Unlock()

	if err := page.BringToFront(); err != nil {
		return fmt.Errorf("switch tab failed: %w", err)
	}
	if err := page.WaitForLoadState(); err != nil {
		return fmt.Errorf("load wait failed: %w", err)
	}
	return nil
}

// TabCount returns the number of open tabs.
func (s *Session) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Content returns the serialized HTML of the active document.
func (s *Session) Content() (string, error) {
	content, err := s.page().Content()
	if err != nil {
		return "", fmt.Errorf("content read failed: %w", err)
	}
	return content, nil
}

// Fetch re-requests url through the session's request context, preserving
// cookies and authentication.
func (s *Session) Fetch(url string) (*FetchResult, error) {
	resp, err := s.context.Request().Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("fetch body read failed: %w", err)
	}

	contentType := ""
	for name, value := range resp.Headers() {
		if strings.EqualFold(name, "content-type") {
			contentType = strings.ToLower(value)
			break
		}
	}

	return &FetchResult{
		Status:      resp.Status(),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// DropdownOptions lists the options of the native select matching locator.
func (s *Session) DropdownOptions(locator string) ([]DropdownOption, error) {
	loc, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	raw, err := loc.Evaluate(`el => {
		if (el.tagName.toLowerCase() !== 'select') return null;
		return Array.from(el.options).map(opt => ({
			index: opt.index,
			text: opt.text,
			value: opt.value
		}));
	}`, nil)
	if err != nil {
		return nil, fmt.Errorf("dropdown inspection failed: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("element %q is not a select", locator)
	}

	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected dropdown inspection result %T", raw)
	}

	options := make([]DropdownOption, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		option := DropdownOption{}
		if idx, ok := fields["index"].(float64); ok {
			option.Index = int(idx)
		}
		if text, ok := fields["text"].(string); ok {
			option.Text = text
		}
		if value, ok := fields["value"].(string); ok {
			option.Value = value
		}
		options = append(options, option)
	}
	return options, nil
}

// SelectOption selects a dropdown option by its visible label and returns
// the selected values.
func (s *Session) SelectOption(locator, label string) ([]string, error) {
	loc, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	values, err := loc.SelectOption(playwright.SelectOptionValues{
		Labels: playwright.StringSlice(label),
	})
	if err != nil {
		return nil, fmt.Errorf("select option failed: %w", err)
	}
	return values, nil
}

// Close shuts the session's browser down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, page := range s.pages {
		_ = page.Close() // Ignore errors, continue cleanup
	}
	s.pages = nil
	_ = s.context.Close()
	if err := s.browser.Close(); err != nil {
		return fmt.Errorf("browser close failed: %w", err)
	}
	return nil
}
