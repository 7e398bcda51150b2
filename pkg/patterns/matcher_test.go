package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHost(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
	}{
		{"plain", "https://example.com/path", "example.com"},
		{"with port", "https://example.com:8443/path", "example.com"},
		{"uppercase", "https://EXAMPLE.com", "example.com"},
		{"no host", "not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Host(tt.location))
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		location string
		pattern  string
		want     bool
	}{
		{"exact location", "https://a.com/", "https://a.com/", true},
		{"exact host", "https://a.com/path", "a.com", true},
		{"exact mismatch", "https://a.com/other", "https://a.com/", false},

		{"suffix matches apex", "https://example.com/x", "*.example.com", true},
		{"suffix matches subdomain", "https://www.example.com/x", "*.example.com", true},
		{"suffix rejects lookalike", "https://badexample.com/x", "*.example.com", false},

		{"glob path prefix", "https://a.com/admin/users", "https://a.com/admin/*", true},
		{"glob path prefix miss", "https://a.com/public", "https://a.com/admin/*", false},
		{"glob anywhere", "https://a.com/x?q=1", "*q=1*", true},

		{"regex on host", "https://shop-eu.example.com/", `^shop-[a-z]+\.example\.com$`, true},
		{"regex miss", "https://example.com/", `^shop-[a-z]+\.`, false},

		{"empty pattern", "https://a.com/", "", false},
		{"unparseable location regex", "::::", "a.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.location, tt.pattern))
		})
	}
}

func TestMatchesAny(t *testing.T) {
	loc := "https://docs.example.com/guide"

	assert.True(t, MatchesAny(loc, []string{"nomatch.com", "*.example.com"}))
	assert.False(t, MatchesAny(loc, []string{"nomatch.com", "other.org"}))
	assert.False(t, MatchesAny(loc, nil))
}

func TestMatches_InvalidGlobDoesNotPanic(t *testing.T) {
	// gobwas/glob rejects unbalanced brackets; the matcher must treat the
	// pattern as a non-match rather than fail.
	assert.False(t, Matches("https://a.com/", "[*"))
}
