package cdp

import "strings"

// netErrors maps chromium error text to its net error code
var netErrors = map[string]int{
	"net::ERR_FAILED":                   -2,
	"net::ERR_ABORTED":                  -3,
	"net::ERR_TIMED_OUT":                -7,
	"net::ERR_BLOCKED_BY_CLIENT":        -20,
	"net::ERR_NETWORK_CHANGED":          -21,
	"net::ERR_CONNECTION_CLOSED":        -100,
	"net::ERR_CONNECTION_RESET":         -101,
	"net::ERR_CONNECTION_REFUSED":       -102,
	"net::ERR_CONNECTION_ABORTED":       -103,
	"net::ERR_CONNECTION_FAILED":        -104,
	"net::ERR_NAME_NOT_RESOLVED":        -105,
	"net::ERR_INTERNET_DISCONNECTED":    -106,
	"net::ERR_SSL_PROTOCOL_ERROR":       -107,
	"net::ERR_ADDRESS_UNREACHABLE":      -109,
	"net::ERR_CONNECTION_TIMED_OUT":     -118,
	"net::ERR_NAME_RESOLUTION_FAILED":   -137,
	"net::ERR_CERT_COMMON_NAME_INVALID": -200,
	"net::ERR_CERT_DATE_INVALID":        -201,
	"net::ERR_CERT_AUTHORITY_INVALID":   -202,
	"net::ERR_TOO_MANY_REDIRECTS":       -310,
	"net::ERR_EMPTY_RESPONSE":           -324,
}

const errFailed = "net::ERR_FAILED"

// netErrorCode returns the code for a chromium error text, -2 when unknown
func netErrorCode(text string) int {
	text = strings.TrimSpace(text)
	if code, ok := netErrors[text]; ok {
		return code
	}
	return netErrors[errFailed]
}

// describe strips the net:: prefix for display
func describe(text string) string {
	if text == "" {
		text = errFailed
	}
	return strings.TrimPrefix(strings.TrimSpace(text), "net::")
}
