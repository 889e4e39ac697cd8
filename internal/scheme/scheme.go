package scheme

import "strings"

// App is the internal application scheme prefix
const App = "vibebrowser://"

// Pseudo-URLs intercepted before they reach the engine
const (
	RetryURL   = App + "retry"
	OfflineURL = App + "offline"
)

// internalPrefixes never reach the network and are never normalized
var internalPrefixes = []string{"data:", App, "about:", "file:", "blob:"}

// IsInternal reports whether url uses a non-network scheme
func IsInternal(url string) bool {
	lower := strings.ToLower(strings.TrimSpace(url))
	for _, p := range internalPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// IsSynthetic reports whether url is generated by the shell itself
// (inline documents and the app scheme) and must stay out of history and
// saved tabs.
func IsSynthetic(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, App)
}

// Normalize trims url and prepends https:// to anything that is neither
// internal nor explicitly http(s).
func Normalize(url string) string {
	url = strings.TrimSpace(url)
	if IsInternal(url) {
		return url
	}
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + url
	}
	return url
}
