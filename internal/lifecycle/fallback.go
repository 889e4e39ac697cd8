package lifecycle

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/bnema/vibeview/internal/scheme"
)

const dataURLPrefix = "data:text/html;charset=utf-8,"

const pageStyle = `
body {
	font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
	display: flex;
	align-items: center;
	justify-content: center;
	min-height: 100vh;
	margin: 0;
	background: #1e1e2e;
	color: #cdd6f4;
}
.container { text-align: center; max-width: 600px; padding: 40px; background: #11111b; border-radius: 8px; }
h1 { margin-top: 0; }
h1.error { color: #f38ba8; }
h1.offline { color: #fab387; }
code { background: #313244; padding: 2px 6px; border-radius: 3px; font-family: monospace; word-break: break-all; }
a.button { display: inline-block; margin: 16px 6px 0; padding: 8px 16px; background: #89b4fa; color: #11111b; border-radius: 6px; font-weight: 600; text-decoration: none; }
a.secondary { background: #45475a; color: #cdd6f4; }
textarea { width: 100%; min-height: 120px; margin-top: 16px; background: #313244; color: #cdd6f4; border: none; border-radius: 6px; padding: 8px; box-sizing: border-box; }
.hint { margin-top: 20px; font-size: 12px; color: #a6adc8; }
.clock { font-size: 32px; margin: 12px 0; font-variant-numeric: tabular-nums; }
`

const pagesTemplate = `
{{define "error"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Page failed to load</title>
<style>{{.Style}}</style>
</head>
<body>
<div class="container">
<h1 class="error">Page failed to load</h1>
<p>The page could not be loaded.</p>
{{if .URL}}<p><code>{{.URL}}</code></p>{{end}}
{{if .Description}}<p><code>{{.Description}}</code></p>{{end}}
<a class="button" href="{{.RetryURL}}">Try again</a>
<a class="button secondary" href="{{.OfflineURL}}">Open offline page</a>
<p class="hint">Check your internet connection and try again.</p>
</div>
</body>
</html>{{end}}

{{define "offline"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>You are offline</title>
<style>{{.Style}}</style>
</head>
<body>
<div class="container">
<h1 class="offline">You are offline</h1>
<p>No network connection was detected.</p>
{{if .URL}}<p><code>{{.URL}}</code></p>{{end}}
<a class="button" href="{{.RetryURL}}">Try again</a>
<div class="clock" id="clock"></div>
<textarea id="notes" placeholder="Notes stay on this page while you are offline"></textarea>
<p class="hint">Use Try again once your connection is back.</p>
</div>
<script>
(function () {
	var clock = document.getElementById('clock');
	function tick() { clock.textContent = new Date().toLocaleTimeString(); }
	tick();
	setInterval(tick, 1000);

	var notes = document.getElementById('notes');
	try {
		notes.value = window.localStorage.getItem('offline-notes') || '';
		notes.addEventListener('input', function () {
			window.localStorage.setItem('offline-notes', notes.value);
		});
	} catch (e) {}
})();
</script>
</body>
</html>{{end}}
`

var pages = template.Must(template.New("pages").Parse(pagesTemplate))

type pageData struct {
	URL         string
	Description string
	Style       template.CSS
	RetryURL    template.URL
	OfflineURL  template.URL
}

// ErrorPage renders the generic load failure page as a data URL
func ErrorPage(failedURL, description string) (string, error) {
	return renderPage("error", failedURL, description)
}

// OfflinePage renders the offline page as a data URL
func OfflinePage(failedURL string) (string, error) {
	return renderPage("offline", failedURL, "")
}

func renderPage(name, failedURL, description string) (string, error) {
	var buf bytes.Buffer
	err := pages.ExecuteTemplate(&buf, name, pageData{
		URL:         failedURL,
		Description: description,
		Style:       template.CSS(pageStyle),
		RetryURL:    template.URL(scheme.RetryURL),
		OfflineURL:  template.URL(scheme.OfflineURL),
	})
	if err != nil {
		return "", fmt.Errorf("render %s page: %w", name, err)
	}
	return dataURLPrefix + url.PathEscape(buf.String()), nil
}
