// Package patterns decides whether a location (URL) satisfies a location
// pattern. Patterns come in four forms, tried in order: exact string match
// against the location or its host, a "*.suffix" domain-suffix rule, a glob
// over the full location string, and finally a regular expression matched
// against the host.
package patterns

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// Compiled globs and regexps are cached because registries evaluate the same
// small pattern set against every location they see.
var (
	mu          sync.RWMutex
	globCache   = make(map[string]glob.Glob)
	regexpCache = make(map[string]*regexp.Regexp)
)

// Host extracts the lowercased hostname from a location, without the port.
// Returns "" when the location cannot be parsed or has no host.
func Host(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Matches reports whether location satisfies pattern.
func Matches(location, pattern string) bool {
	if pattern == "" {
		return false
	}

	host := Host(location)

	// Exact match against the full location or its host.
	if pattern == location || (host != "" && pattern == host) {
		return true
	}

	// Domain suffix: "*.example.com" matches example.com and any subdomain.
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok && !strings.Contains(suffix, "*") {
		if host != "" && (host == suffix || strings.HasSuffix(host, "."+suffix)) {
			return true
		}
	}

	// Glob over the full location, e.g. "https://example.com/admin/*".
	if strings.Contains(pattern, "*") {
		if g := compiledGlob(pattern); g != nil && g.Match(location) {
			return true
		}
		return false
	}

	// Regular expression fallback against the host.
	if host != "" {
		if re := compiledRegexp(pattern); re != nil && re.MatchString(host) {
			return true
		}
	}

	return false
}

// MatchesAny reports whether location satisfies at least one of the patterns.
// An empty pattern list never matches; callers treat "no patterns" as
// "unrestricted" before reaching the matcher.
func MatchesAny(location string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(location, p) {
			return true
		}
	}
	return false
}

func compiledGlob(pattern string) glob.Glob {
	mu.RLock()
	g, ok := globCache[pattern]
	mu.RUnlock()
	if ok {
		return g
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil
	}

	mu.Lock()
	globCache[pattern] = g
	mu.Unlock()
	return g
}

func compiledRegexp(pattern string) *regexp.Regexp {
	mu.RLock()
	re, ok := regexpCache[pattern]
	mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}

	mu.Lock()
	regexpCache[pattern] = re
	mu.Unlock()
	return re
}
