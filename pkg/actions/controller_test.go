package actions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftware/pilot/pkg/config"
	"github.com/driftware/pilot/pkg/mutation"
)

func TestNewController_RegistersDefaults(t *testing.T) {
	c, err := NewController(mutation.NewBus(nil), config.Default(), nil)
	require.NoError(t, err)

	names := c.Registry().Names()
	assert.Contains(t, names, "done")
	assert.Contains(t, names, "click_element")
	assert.Contains(t, names, "extract_content")
	assert.Len(t, names, len(DefaultDescriptors()))
}

func TestNewController_ExcludeActions(t *testing.T) {
	c, err := NewController(mutation.NewBus(nil), config.Default(), nil,
		WithExcludeActions("search_google", "open_tab", "never_existed"))
	require.NoError(t, err)

	names := c.Registry().Names()
	assert.NotContains(t, names, "search_google")
	assert.NotContains(t, names, "open_tab")
	assert.Contains(t, names, "done")
}

func TestController_AllowedActionsAndSchema(t *testing.T) {
	c, err := NewController(mutation.NewBus(nil), config.Default(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Registry().Register(Descriptor{
		Name:     "admin_only",
		Patterns: []string{"admin.example.com"},
		Schema:   BaseSchema(map[string]interface{}{}, nil),
		Handler:  nopHandler,
	}))

	allowed := c.AllowedActions("https://public.example.com")
	assert.Contains(t, allowed, "done")
	assert.NotContains(t, allowed, "admin_only")

	schema := c.RequestSchema("https://public.example.com")
	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "done")
	assert.NotContains(t, props, "admin_only")

	prompt := c.PromptDescription("https://public.example.com")
	assert.Contains(t, prompt, "done")
	assert.NotContains(t, prompt, "admin_only")
}

func TestController_ActRoundTrip(t *testing.T) {
	settings := config.Default()
	settings.DrainInterval = config.Duration(time.Millisecond)

	c, err := NewController(mutation.NewBus(nil), settings, nil)
	require.NoError(t, err)

	req, err := ParseRequest([]byte(`{"done": {"text": "finished", "success": true}}`))
	require.NoError(t, err)

	out, err := c.Act(context.Background(), req, &Collaborators{Browser: &fakeSurface{url: "https://example.com"}})
	require.NoError(t, err)
	assert.True(t, out.IsDone)
	assert.True(t, out.Success)
	assert.Equal(t, "finished", out.Content)
	assert.NotNil(t, out.Changes)
}

func TestController_ActEmptyRequest(t *testing.T) {
	c, err := NewController(mutation.NewBus(nil), config.Default(), nil)
	require.NoError(t, err)

	out, err := c.Act(context.Background(), Request{"done": json.RawMessage("null")},
		&Collaborators{Browser: &fakeSurface{url: "https://example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "No action specified.", out.Error)
}
