package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftware/pilot/pkg/browser"
	"github.com/driftware/pilot/pkg/mutation"
)

// fakeSurface implements the parts of browser.Surface the tests exercise.
// The embedded interface panics for anything a test forgot to stub.
type fakeSurface struct {
	browser.Surface

	url       string
	navigated []string

	clickResult *browser.ClickResult
	clickErr    error

	fillTarget *browser.TargetInfo
	fillErr    error

	pressed  []string
	pressErr func(keys string) error

	evaluated []string

	scrollFound bool

	html     string
	fetchRes *browser.FetchResult
	fetchErr error

	options     []browser.DropdownOption
	dropdownErr error
	selected    []string
	selectErr   error

	switched []int
	opened   []string
}

func (f *fakeSurface) CurrentURL() string { return f.url }

func (f *fakeSurface) Navigate(url string) error {
	f.navigated = append(f.navigated, url)
	f.url = url
	return nil
}

func (f *fakeSurface) GoBack() error    { return nil }
func (f *fakeSurface) GoForward() error { return nil }

func (f *fakeSurface) Click(locator string) (*browser.ClickResult, error) {
	if f.clickErr != nil {
		return nil, f.clickErr
	}
	return f.clickResult, nil
}

func (f *fakeSurface) Fill(locator, text string) (*browser.TargetInfo, error) {
	if f.fillErr != nil {
		return nil, f.fillErr
	}
	return f.fillTarget, nil
}

func (f *fakeSurface) Press(keys string) error {
	if f.pressErr != nil {
		if err := f.pressErr(keys); err != nil {
			return err
		}
	}
	f.pressed = append(f.pressed, keys)
	return nil
}

func (f *fakeSurface) Evaluate(js string) (interface{}, error) {
	f.evaluated = append(f.evaluated, js)
	return nil, nil
}

func (f *fakeSurface) ScrollToText(text string) (bool, error) { return f.scrollFound, nil }

func (f *fakeSurface) OpenTab(url string) error {
	f.opened = append(f.opened, url)
	return nil
}

func (f *fakeSurface) SwitchTab(index int) error {
	f.switched = append(f.switched, index)
	return nil
}

func (f *fakeSurface) Content() (string, error) { return f.html, nil }

func (f *fakeSurface) Fetch(url string) (*browser.FetchResult, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.fetchRes, nil
}

func (f *fakeSurface) DropdownOptions(locator string) ([]browser.DropdownOption, error) {
	if f.dropdownErr != nil {
		return nil, f.dropdownErr
	}
	return f.options, nil
}

func (f *fakeSurface) SelectOption(locator, label string) ([]string, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.selected, nil
}

func newTestDispatcher(t *testing.T, descriptors ...Descriptor) (*Dispatcher, *mutation.Bus) {
	t.Helper()
	registry := NewRegistry(nil)
	for _, d := range descriptors {
		require.NoError(t, registry.Register(d))
	}
	bus := mutation.NewBus(nil)
	return NewDispatcher(registry, bus, 5*time.Millisecond, nil), bus
}

func echoDescriptor(name string, patterns ...string) Descriptor {
	return Descriptor{
		Name:        name,
		Description: name,
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Patterns:    patterns,
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			return "ran " + name, nil
		},
	}
}

func collab(url string) *Collaborators {
	return &Collaborators{Browser: &fakeSurface{url: url}}
}

func TestAct_EmptyRequestOpensNoSubscription(t *testing.T) {
	d, _ := newTestDispatcher(t, echoDescriptor("noop"))

	out, err := d.Act(context.Background(), Request{}, collab("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "No action specified.", out.Error)
	assert.Nil(t, out.Changes, "no subscription should have been opened")
}

func TestAct_AllNullFieldsTreatedAsEmpty(t *testing.T) {
	d, _ := newTestDispatcher(t, echoDescriptor("noop"))

	req := Request{"noop": json.RawMessage("null")}
	out, err := d.Act(context.Background(), req, collab("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "No action specified.", out.Error)
}

func TestAct_UnregisteredActionIsNotAllowed(t *testing.T) {
	d, _ := newTestDispatcher(t, echoDescriptor("noop"))

	req := Request{"missing": json.RawMessage("{}")}
	out, err := d.Act(context.Background(), req, collab("https://example.com"))
	require.NoError(t, err)
	assert.Contains(t, out.Error, "Action 'missing' is not allowed for the current location: https://example.com")
	assert.Contains(t, out.Error, "Allowed actions: noop")
	assert.Nil(t, out.Changes)
}

func TestAct_ForbiddenActionNeverInvokesHandler(t *testing.T) {
	invoked := false
	scoped := Descriptor{
		Name:        "scoped",
		Description: "scoped",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Patterns:    []string{"allowed.example.com"},
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			invoked = true
			return nil, nil
		},
	}
	d, _ := newTestDispatcher(t, echoDescriptor("open"), scoped)

	req := Request{"scoped": json.RawMessage("{}")}
	out, err := d.Act(context.Background(), req, collab("https://other.example.com/page"))
	require.NoError(t, err)

	assert.False(t, invoked)
	assert.Contains(t, out.Error, "Action 'scoped' is not allowed for the current location: https://other.example.com/page")
	assert.Contains(t, out.Error, "Allowed actions: open")
	assert.True(t, out.IncludeInMemory)
	assert.Nil(t, out.Changes)
}

func TestAct_PermissionCheckUsesLiveLocation(t *testing.T) {
	scoped := echoDescriptor("scoped", "allowed.example.com")
	d, _ := newTestDispatcher(t, scoped)

	c := collab("https://other.example.com")
	req := Request{"scoped": json.RawMessage("{}")}

	out, err := d.Act(context.Background(), req, c)
	require.NoError(t, err)
	assert.Contains(t, out.Error, "not allowed")

	c.Browser.(*fakeSurface).url = "https://allowed.example.com"
	out, err = d.Act(context.Background(), req, c)
	require.NoError(t, err)
	assert.Empty(t, out.Error)
	assert.Equal(t, "ran scoped", out.Content)
}

func TestAct_StringResultBecomesContent(t *testing.T) {
	d, _ := newTestDispatcher(t, echoDescriptor("noop"))

	out, err := d.Act(context.Background(), Request{"noop": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "ran noop", out.Content)
	assert.NotNil(t, out.Changes, "a subscription was open, changes must be non-nil")
	assert.Empty(t, out.Changes)
}

func TestAct_MergesMutationEvents(t *testing.T) {
	var bus *mutation.Bus
	notify := Descriptor{
		Name:        "mutate",
		Description: "mutate",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			bus.Notify([]mutation.ChangeEvent{
				{Kind: mutation.KindAdded, Tag: "div", Content: "hello"},
				{Kind: mutation.KindModified, Tag: "div", Content: "hello"},
			})
			return "done", nil
		},
	}
	d, b := newTestDispatcher(t, notify)
	bus = b

	out, err := d.Act(context.Background(), Request{"mutate": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	require.Len(t, out.Changes, 1, "duplicate tag+content must be merged")
	assert.Equal(t, mutation.KindAdded, out.Changes[0].Kind)
	assert.Equal(t, "hello", out.Changes[0].Content)
}

func TestAct_LateBatchCapturedDuringDrain(t *testing.T) {
	var bus *mutation.Bus
	slow := Descriptor{
		Name:        "slow",
		Description: "slow",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			go func() {
				time.Sleep(2 * time.Millisecond)
				bus.Notify([]mutation.ChangeEvent{{Kind: mutation.KindAdded, Tag: "p", Content: "late"}})
			}()
			return nil, nil
		},
	}
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(slow))
	bus = mutation.NewBus(nil)
	d := NewDispatcher(registry, bus, 50*time.Millisecond, nil)

	out, err := d.Act(context.Background(), Request{"slow": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "late", out.Changes[0].Content)
}

func TestAct_OutcomeResultGetsChangesAttached(t *testing.T) {
	target := &browser.TargetInfo{Tag: "button", Locator: "#submit"}
	rich := Descriptor{
		Name:        "rich",
		Description: "rich",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			return &Outcome{Content: "clicked", PageChanged: true, Target: target}, nil
		},
	}
	d, _ := newTestDispatcher(t, rich)

	out, err := d.Act(context.Background(), Request{"rich": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "clicked", out.Content)
	assert.True(t, out.PageChanged)
	assert.Same(t, target, out.Target)
	assert.NotNil(t, out.Changes)
}

func TestAct_TypedNilOutcomeTreatedAsEmptyResult(t *testing.T) {
	var bus *mutation.Bus
	typedNil := Descriptor{
		Name:        "typed_nil",
		Description: "typed_nil",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			bus.Notify([]mutation.ChangeEvent{{Kind: mutation.KindAdded, Tag: "div", Content: "x"}})
			var o *Outcome
			return o, nil
		},
	}
	d, b := newTestDispatcher(t, typedNil)
	bus = b

	out, err := d.Act(context.Background(), Request{"typed_nil": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Empty(t, out.Content)
	assert.Empty(t, out.Error)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "x", out.Changes[0].Content)
}

func TestAct_NilResultYieldsEmptyOutcome(t *testing.T) {
	quiet := Descriptor{
		Name:        "quiet",
		Description: "quiet",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			return nil, nil
		},
	}
	d, _ := newTestDispatcher(t, quiet)

	out, err := d.Act(context.Background(), Request{"quiet": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	assert.Empty(t, out.Content)
	assert.Empty(t, out.Error)
	assert.NotNil(t, out.Changes)
}

func TestAct_HandlerErrorWrappedAndSubscriptionCleanedUp(t *testing.T) {
	boom := errors.New("boom")
	failing := Descriptor{
		Name:        "failing",
		Description: "failing",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			return nil, boom
		},
	}
	d, bus := newTestDispatcher(t, failing)

	out, err := d.Act(context.Background(), Request{"failing": json.RawMessage("{}")}, collab("https://example.com"))
	assert.Nil(t, out)
	require.Error(t, err)

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.Equal(t, "failing", handlerErr.Action)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, bus.SubscriberCount(), "subscription must be removed after a failure")
}

func TestAct_InvalidResultTypeRejected(t *testing.T) {
	weird := Descriptor{
		Name:        "weird",
		Description: "weird",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			return 42, nil
		},
	}
	d, bus := newTestDispatcher(t, weird)

	out, err := d.Act(context.Background(), Request{"weird": json.RawMessage("{}")}, collab("https://example.com"))
	assert.Nil(t, out)

	var invalid *InvalidResultError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "weird", invalid.Action)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestAct_SubscriptionRemovedAfterSuccess(t *testing.T) {
	d, bus := newTestDispatcher(t, echoDescriptor("noop"))

	_, err := d.Act(context.Background(), Request{"noop": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestAct_MultiplePopulatedFieldsPicksLexicographicFirst(t *testing.T) {
	var ran []string
	mk := func(name string) Descriptor {
		return Descriptor{
			Name:        name,
			Description: name,
			Schema:      BaseSchema(map[string]interface{}{}, nil),
			Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
				ran = append(ran, name)
				return nil, nil
			},
		}
	}
	d, _ := newTestDispatcher(t, mk("zeta"), mk("alpha"))

	req := Request{
		"zeta":  json.RawMessage("{}"),
		"alpha": json.RawMessage("{}"),
	}
	_, err := d.Act(context.Background(), req, collab("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, ran)
}

func TestAct_OverlappingCyclesBothReceiveBatches(t *testing.T) {
	var bus *mutation.Bus
	started := make(chan struct{})
	release := make(chan struct{})

	blocking := Descriptor{
		Name:        "blocking",
		Description: "blocking",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	quick := Descriptor{
		Name:        "quick",
		Description: "quick",
		Schema:      BaseSchema(map[string]interface{}{}, nil),
		Handler: func(_ context.Context, _ json.RawMessage, _ *Collaborators) (interface{}, error) {
			bus.Notify([]mutation.ChangeEvent{{Kind: mutation.KindAdded, Tag: "li", Content: "shared"}})
			return nil, nil
		},
	}
	d, b := newTestDispatcher(t, blocking, quick)
	bus = b

	type res struct {
		out *Outcome
		err error
	}
	blockingDone := make(chan res, 1)
	go func() {
		out, err := d.Act(context.Background(), Request{"blocking": json.RawMessage("{}")}, collab("https://example.com"))
		blockingDone <- res{out, err}
	}()

	<-started
	quickOut, err := d.Act(context.Background(), Request{"quick": json.RawMessage("{}")}, collab("https://example.com"))
	require.NoError(t, err)
	close(release)

	blockingRes := <-blockingDone
	require.NoError(t, blockingRes.err)

	require.Len(t, quickOut.Changes, 1)
	require.Len(t, blockingRes.out.Changes, 1, "concurrent cycle must also observe the batch")
	assert.Equal(t, "shared", blockingRes.out.Changes[0].Content)
}

func TestHandlerError_Message(t *testing.T) {
	err := &HandlerError{Action: "click_element", Err: fmt.Errorf("timeout")}
	assert.Contains(t, err.Error(), "click_element")
	assert.Contains(t, err.Error(), "timeout")
}
