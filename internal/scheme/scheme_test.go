package scheme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/path  ", "https://example.com/path"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"HTTPS://Example.com", "HTTPS://Example.com"},
		{"data:text/html,hi", "data:text/html,hi"},
		{"vibebrowser://offline", "vibebrowser://offline"},
		{"about:blank", "about:blank"},
		{"file:///tmp/x.html", "file:///tmp/x.html"},
		{"blob:https://a.io/1", "blob:https://a.io/1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestIsInternalAndSynthetic(t *testing.T) {
	assert.True(t, IsInternal("DATA:text/plain,x"))
	assert.True(t, IsInternal(RetryURL))
	assert.True(t, IsInternal("about:blank"))
	assert.False(t, IsInternal("https://example.com"))

	assert.True(t, IsSynthetic("data:text/html,x"))
	assert.True(t, IsSynthetic(OfflineURL))
	assert.False(t, IsSynthetic("about:blank"))
	assert.False(t, IsSynthetic("https://example.com"))
}
