package parser

import (
	"strings"
	"testing"

	"github.com/bnema/vibeview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantType    models.FilterType
		wantPattern string
		wantOptions string
		wantSkip    string
	}{
		{name: "comment", line: "! Google Ads", wantType: models.FilterTypeComment},
		{name: "list header", line: "[Adblock Plus 2.0]", wantType: models.FilterTypeComment},
		{name: "block domain", line: "||doubleclick.net^", wantType: models.FilterTypeBlock, wantPattern: "||doubleclick.net^"},
		{name: "allow domain", line: "@@||google.com^", wantType: models.FilterTypeAllow, wantPattern: "||google.com^"},
		{name: "lowercased", line: "||Ads.Example.COM^", wantType: models.FilterTypeBlock, wantPattern: "||ads.example.com^"},
		{name: "options stripped", line: "||tracker.io^$third-party,script", wantType: models.FilterTypeBlock, wantPattern: "||tracker.io^", wantOptions: "third-party,script"},
		{name: "options cut at first dollar", line: "/ads$x$y", wantType: models.FilterTypeBlock, wantPattern: "/ads", wantOptions: "x$y"},
		{name: "only options", line: "$script", wantSkip: SkipEmptyPattern},
		{name: "allow with only options", line: "@@$document", wantSkip: SkipEmptyPattern},
		{name: "cosmetic", line: "example.com##.banner", wantSkip: SkipCosmetic},
		{name: "cosmetic exception", line: "example.com#@#.banner", wantSkip: SkipCosmetic},
		{name: "surrounding spaces", line: "   banner-ad   ", wantType: models.FilterTypeBlock, wantPattern: "banner-ad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, reason := ParseLine(tt.line)
			assert.Equal(t, tt.wantSkip, reason)
			if tt.wantSkip != "" {
				return
			}
			assert.Equal(t, tt.wantType, f.Type)
			assert.Equal(t, tt.wantPattern, f.Pattern)
			assert.Equal(t, tt.wantOptions, f.Options)
		})
	}
}

func TestParseCountsAndSkips(t *testing.T) {
	input := `! VibeBrowser Adblock Rules

||doubleclick.net^
||criteo.com^
@@||google.com^
example.com##.ad
$popup
`
	p := New()
	filters, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Len(t, filters, 3)
	stats := p.Stats()
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 1, stats.Comments)
	assert.Equal(t, 2, stats.Block)
	assert.Equal(t, 1, stats.Allow)
	assert.Equal(t, 2, stats.Unsupported)
	assert.Equal(t, 1, stats.SkipReasons[SkipCosmetic])
	assert.Equal(t, 1, stats.SkipReasons[SkipEmptyPattern])
}
