package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageText_BasicDocument(t *testing.T) {
	raw := `<html><head><title>Example Title</title><style>body{}</style></head>
<body><h1>Heading</h1><p>First paragraph.</p><script>alert(1)</script>
<div>Second <b>bold</b> run</div></body></html>`

	title, text, err := PageText(raw)
	require.NoError(t, err)

	assert.Equal(t, "Example Title", title)
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second bold run")
	assert.NotContains(t, text, "alert(1)", "script content must be dropped")
	assert.NotContains(t, text, "body{}", "style content must be dropped")
	assert.NotContains(t, text, "Example Title", "title is metadata, not body text")
}

func TestPageText_CollapsesWhitespace(t *testing.T) {
	raw := "<html><body><p>  a\n\n   b  </p><p></p><p></p><p>c</p></body></html>"

	_, text, err := PageText(raw)
	require.NoError(t, err)

	assert.Equal(t, "a b\n\nc", text)
}

func TestPageText_EmptyDocument(t *testing.T) {
	title, text, err := PageText("")
	require.NoError(t, err)
	assert.Empty(t, title)
	assert.Empty(t, text)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("application/pdf"))
	assert.True(t, IsPDF("Application/PDF; charset=binary"))
	assert.False(t, IsPDF("text/html"))
	assert.False(t, IsPDF(""))
}

func TestTextFromStream(t *testing.T) {
	stream := []byte("BT\n(Hello) Tj\n0 -10 Td\n[(World) -120 (again)] TJ\nT*\n(line two) Tj\nET")

	text := textFromStream(stream)

	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "Worldagain")
	assert.Contains(t, text, "line two")
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, "a(b)c", decodePDFString([]byte(`a\(b\)c`)))
	assert.Equal(t, "tab\there", decodePDFString([]byte(`tab\there`)))
	assert.Equal(t, "a c", decodePDFString([]byte(`a\040c`)))
}

func TestTruncateTokens(t *testing.T) {
	text := "one two three four five six seven eight nine ten"

	kept, truncated := TruncateTokens(text, "gpt-4o", 1000)
	assert.False(t, truncated)
	assert.Equal(t, text, kept)

	short, truncated := TruncateTokens(text, "gpt-4o", 3)
	assert.True(t, truncated)
	assert.Less(t, len(short), len(text))
	assert.NotEmpty(t, short)
}

func TestTruncateTokens_ZeroBudgetLeavesText(t *testing.T) {
	kept, truncated := TruncateTokens("abc", "gpt-4o", 0)
	assert.False(t, truncated)
	assert.Equal(t, "abc", kept)
}
