package converter

import (
	"strings"

	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/parser"
)

// Converter compiles parsed filters into matchers
type Converter struct {
	stats Stats
}

// Stats tracks conversion statistics
type Stats struct {
	Converted   int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipInvalidRegex = "invalid-regex"
	SkipNoPattern    = "no-usable-pattern"
)

// New creates a new converter
func New() *Converter {
	return &Converter{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped filter with reason
func (c *Converter) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns conversion statistics
func (c *Converter) Stats() Stats {
	return c.stats
}

// Convert compiles parsed filters into block and allow rule lists,
// preserving input order.
func (c *Converter) Convert(filters []models.Filter) (block, allow []models.FilterRule) {
	for _, f := range filters {
		if f.Type == models.FilterTypeComment {
			continue
		}

		rule, reason := compilePattern(f.Pattern)
		if rule == nil {
			c.skip(reason)
			continue
		}

		c.stats.Converted++
		if f.Type == models.FilterTypeAllow {
			allow = append(allow, *rule)
		} else {
			block = append(block, *rule)
		}
	}

	return block, allow
}

// Compile compiles one raw filter line. It returns nil for comments and
// lines without a usable pattern; allow reports an @@ exception rule.
func Compile(raw string) (rule *models.FilterRule, allow bool) {
	f, reason := parser.ParseLine(raw)
	if reason != "" || f.Type == models.FilterTypeComment {
		return nil, false
	}

	rule, _ = compilePattern(f.Pattern)
	if rule == nil {
		return nil, false
	}
	return rule, f.Type == models.FilterTypeAllow
}

// compilePattern turns a normalized (lowercase, option-free) pattern into a rule
func compilePattern(pattern string) (*models.FilterRule, string) {
	switch {
	case strings.HasPrefix(pattern, "||"):
		return compileHostAnchored(pattern[2:])

	case strings.HasPrefix(pattern, "|"):
		prefix := strings.TrimSuffix(pattern[1:], "|")
		if prefix == "" {
			return nil, SkipNoPattern
		}
		return &models.FilterRule{Kind: models.RuleKindPrefix, Pattern: prefix}, ""

	case strings.ContainsAny(pattern, "*^"):
		if !hasUsableText(pattern) {
			return nil, SkipNoPattern
		}
		return wildcardRule(pattern, PatternToRegex(pattern))
	}

	return &models.FilterRule{Kind: models.RuleKindContains, Pattern: pattern}, ""
}

// compileHostAnchored handles the remainder of a || pattern
func compileHostAnchored(rest string) (*models.FilterRule, string) {
	rest = strings.TrimSuffix(rest, "|")
	host := strings.TrimRight(rest, "^")
	host = strings.TrimLeft(host, ".")

	// ||host/path^ and ||ads.*.example^ cannot be answered by a hostname comparison
	if strings.ContainsAny(host, "/*^?") {
		if !hasUsableText(host) {
			return nil, SkipNoPattern
		}
		return wildcardRule(strings.TrimLeft(rest, "."), HostPatternToRegex(rest))
	}

	if host == "" {
		return nil, SkipNoPattern
	}
	return &models.FilterRule{Kind: models.RuleKindDomain, Pattern: host}, ""
}

func wildcardRule(pattern, source string) (*models.FilterRule, string) {
	re, err := compileWildcard(source)
	if err != nil {
		return nil, SkipInvalidRegex
	}
	return &models.FilterRule{Kind: models.RuleKindWildcard, Pattern: pattern, Expr: re}, ""
}

// Matches reports whether rule matches a request. hostname and fullURL must
// already be lowercased.
func Matches(hostname, fullURL string, rule *models.FilterRule) bool {
	switch rule.Kind {
	case models.RuleKindDomain:
		return hostname == rule.Pattern || strings.HasSuffix(hostname, "."+rule.Pattern)
	case models.RuleKindPrefix:
		return strings.HasPrefix(fullURL, rule.Pattern)
	case models.RuleKindWildcard:
		if rule.Expr == nil {
			return false
		}
		return rule.Expr.MatchString(fullURL) || rule.Expr.MatchString(hostname)
	case models.RuleKindContains:
		return strings.Contains(hostname, rule.Pattern) || strings.Contains(fullURL, rule.Pattern)
	}
	return false
}

// MatchesAny reports whether any rule matches. There is no precedence among
// rules of the same list.
func MatchesAny(hostname, fullURL string, rules []models.FilterRule) bool {
	for i := range rules {
		if Matches(hostname, fullURL, &rules[i]) {
			return true
		}
	}
	return false
}
