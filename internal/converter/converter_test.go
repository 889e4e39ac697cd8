package converter

import (
	"strings"
	"testing"

	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/parser"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantNil     bool
		wantAllow   bool
		wantKind    models.RuleKind
		wantPattern string
	}{
		{name: "comment", raw: "! Adtech", wantNil: true},
		{name: "empty", raw: "   ", wantNil: true},
		{name: "domain anchor", raw: "||doubleclick.net^", wantKind: models.RuleKindDomain, wantPattern: "doubleclick.net"},
		{name: "domain anchor leading dot", raw: "||.criteo.com^", wantKind: models.RuleKindDomain, wantPattern: "criteo.com"},
		{name: "domain anchor without separator", raw: "||adnxs.com", wantKind: models.RuleKindDomain, wantPattern: "adnxs.com"},
		{name: "domain anchor uppercase", raw: "||Mixpanel.COM^", wantKind: models.RuleKindDomain, wantPattern: "mixpanel.com"},
		{name: "domain anchor empty host", raw: "||^", wantNil: true},
		{name: "domain anchor with path", raw: "||facebook.com/tr^", wantKind: models.RuleKindWildcard, wantPattern: "facebook.com/tr^"},
		{name: "allow rule", raw: "@@||google.com^", wantAllow: true, wantKind: models.RuleKindDomain, wantPattern: "google.com"},
		{name: "options stripped", raw: "||segment.com^$third-party", wantKind: models.RuleKindDomain, wantPattern: "segment.com"},
		{name: "prefix", raw: "|https://ads.", wantKind: models.RuleKindPrefix, wantPattern: "https://ads."},
		{name: "prefix empty", raw: "|", wantNil: true},
		{name: "wildcard", raw: "/banner/*/img^", wantKind: models.RuleKindWildcard, wantPattern: "/banner/*/img^"},
		{name: "only wildcards", raw: "*^*", wantNil: true},
		{name: "contains", raw: "adserver", wantKind: models.RuleKindContains, wantPattern: "adserver"},
		{name: "only options", raw: "$script,image", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, allow := Compile(tt.raw)
			if tt.wantNil {
				assert.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			assert.Equal(t, tt.wantAllow, allow)
			assert.Equal(t, tt.wantKind, rule.Kind)
			assert.Equal(t, tt.wantPattern, rule.Pattern)
			if rule.Kind == models.RuleKindWildcard {
				assert.NotNil(t, rule.Expr, "wildcard rules carry a compiled expression")
			} else {
				assert.Nil(t, rule.Expr, "only wildcard rules carry a compiled expression")
			}
		})
	}
}

func TestPatternToRegex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "escape dots", input: "ads.example.com", expected: `ads\.example\.com`},
		{name: "asterisk", input: "/ads/*.gif", expected: `/ads/.*\.gif`},
		{name: "collapsed asterisks", input: "a***b", expected: `a.*b`},
		{name: "separator", input: "ads^", expected: `ads(?:[^a-z0-9_\-.%]|$)`},
		{name: "metacharacters", input: "a+b?(c)", expected: `a\+b\?\(c\)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PatternToRegex(tt.input))
		})
	}
}

func match(t *testing.T, raw, rawURL string) bool {
	t.Helper()
	rule, _ := Compile(raw)
	require.NotNil(t, rule, "rule %q should compile", raw)
	host := rawURL
	if i := strings.Index(host, "://"); i != -1 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i != -1 {
		host = host[:i]
	}
	return Matches(strings.ToLower(host), strings.ToLower(rawURL), rule)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		rule string
		url  string
		want bool
	}{
		{name: "domain exact", rule: "||example.com^", url: "https://example.com/y", want: true},
		{name: "domain subdomain", rule: "||example.com^", url: "https://sub.example.com/x", want: true},
		{name: "domain not substring", rule: "||example.com^", url: "https://notexample.com/y", want: false},
		{name: "domain in path only", rule: "||example.com^", url: "https://other.org/example.com", want: false},
		{name: "prefix match", rule: "|https://ads.", url: "https://ads.site.io/a.js", want: true},
		{name: "prefix mismatch", rule: "|https://ads.", url: "http://ads.site.io/a.js", want: false},
		{name: "wildcard path", rule: "/ads/*.gif", url: "https://cdn.io/ads/banner.gif", want: true},
		{name: "wildcard case insensitive", rule: "/ADS/*.GIF", url: "https://cdn.io/ads/banner.gif", want: true},
		{name: "separator before query", rule: "||facebook.com/tr^", url: "https://www.facebook.com/tr?id=1", want: true},
		{name: "separator rejects word char", rule: "||facebook.com/tr^", url: "https://www.facebook.com/track", want: false},
		{name: "separator at end of url", rule: "/pixel^", url: "https://t.io/pixel", want: true},
		{name: "contains hostname", rule: "adserver", url: "https://adserver.net/", want: true},
		{name: "contains url", rule: "/banner", url: "https://site.io/banner/1.png", want: true},
		{name: "contains miss", rule: "adserver", url: "https://site.io/", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, match(t, tt.rule, tt.url))
		})
	}
}

func TestConvertSplitsAllowAndBlock(t *testing.T) {
	p := parser.New()
	filters, err := p.Parse(strings.NewReader("||doubleclick.net^\n@@||google.com^\n||^\nbanner\n"))
	require.NoError(t, err)

	c := New()
	block, allow := c.Convert(filters)

	assert.Len(t, block, 2)
	assert.Len(t, allow, 1)
	assert.Equal(t, "doubleclick.net", block[0].Pattern)
	assert.Equal(t, "banner", block[1].Pattern)
	assert.Equal(t, "google.com", allow[0].Pattern)
	assert.Equal(t, 1, c.Stats().Skipped)
	assert.Equal(t, 1, c.Stats().SkipReasons[SkipNoPattern])
}

func TestDeduplicate(t *testing.T) {
	a, _ := Compile("||doubleclick.net^")
	b, _ := Compile("||DoubleClick.net^$third-party")
	c, _ := Compile("doubleclick.net")

	rules := Deduplicate([]models.FilterRule{*a, *b, *c})
	assert.Len(t, rules, 2)
	assert.Equal(t, models.RuleKindDomain, rules[0].Kind)
	assert.Equal(t, models.RuleKindContains, rules[1].Kind)
}

func TestDomainAnchorProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	label := gen.AlphaString().
		SuchThat(func(s string) bool { return s != "" }).
		Map(strings.ToLower)

	properties.Property("A ||domain^ rule matches the domain and any subdomain", prop.ForAll(
		func(sub, domain string) bool {
			rule, _ := Compile("||" + domain + ".com^")
			if rule == nil {
				return false
			}
			host := domain + ".com"
			subHost := sub + "." + host
			return Matches(host, "https://"+host+"/", rule) &&
				Matches(subHost, "https://"+subHost+"/x", rule)
		},
		label, label,
	))

	properties.Property("A ||domain^ rule never matches a host that merely ends with the domain text", prop.ForAll(
		func(prefix, domain string) bool {
			rule, _ := Compile("||" + domain + ".com^")
			if rule == nil {
				return false
			}
			host := prefix + domain + ".com"
			return !Matches(host, "https://"+host+"/", rule)
		},
		label, label,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
