package converter

import (
	"regexp"
	"strings"
)

const (
	// Separator matches any character outside a hostname/path token, or the end of input
	restrSeparator = `(?:[^a-z0-9_\-.%]|$)`
	// Hostname anchor for || patterns that carry a path or wildcard
	restrHostnameAnchor = `^[a-z][a-z0-9+.-]*://(?:[^/?#]+\.)?`
)

var (
	// Characters to escape in regex (except * and ^)
	rePlainChars = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	// Runs of asterisks collapse to a single .*
	reAsterisks = regexp.MustCompile(`\*+`)
	// Separator placeholder
	reSeparators = regexp.MustCompile(`\^`)
)

// PatternToRegex converts a wildcard pattern to an unanchored regex source.
// Metacharacters are escaped, * becomes .* and ^ becomes a separator assertion.
func PatternToRegex(pattern string) string {
	reStr := rePlainChars.ReplaceAllString(pattern, `\$0`)
	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)
	reStr = reSeparators.ReplaceAllString(reStr, restrSeparator)
	return reStr
}

// HostPatternToRegex converts the remainder of a || pattern that is not a
// bare hostname (it has a path or wildcard) into a scheme-and-subdomain
// anchored regex source.
func HostPatternToRegex(pattern string) string {
	return restrHostnameAnchor + PatternToRegex(strings.TrimPrefix(pattern, "."))
}

// compileWildcard compiles a regex source case-insensitively
func compileWildcard(source string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + source)
}

// hasUsableText reports whether a pattern has anything besides wildcards and separators
func hasUsableText(pattern string) bool {
	return strings.Trim(pattern, "*^|") != ""
}
