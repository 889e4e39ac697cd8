package mediator

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/engine"
	"github.com/bnema/vibeview/internal/metrics"
	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/ruleset"
	"github.com/bnema/vibeview/internal/scheme"
)

// Estimated transfer size of a blocked request, by resource type
const (
	savedImage  = 250 * 1024
	savedMedia  = 2 * 1024 * 1024
	savedFont   = 100 * 1024
	savedScript = 120 * 1024
	savedXHR    = 80 * 1024
	savedOther  = 40 * 1024
)

// RuleSource supplies the live rule snapshot
type RuleSource interface {
	Current() *ruleset.Set
	RecordBlocked()
}

// Mediator decides allow/block for every request of the sessions it is
// installed on and keeps data saver statistics. Safe for concurrent use.
type Mediator struct {
	rules   RuleSource
	metrics *metrics.Metrics

	adblock   atomic.Bool
	dataSaver atomic.Bool

	allowed     atomic.Int64
	blocked     atomic.Int64
	saved       atomic.Int64
	transferred atomic.Int64

	mu        sync.Mutex
	byType    map[string]int64
	installed map[string]bool
}

// Option configures a Mediator
type Option func(*Mediator)

// WithMetrics mirrors counters into prometheus
func WithMetrics(m *metrics.Metrics) Option {
	return func(md *Mediator) { md.metrics = m }
}

// New creates a mediator with adblock enabled and data saver disabled
func New(rules RuleSource, opts ...Option) *Mediator {
	m := &Mediator{
		rules:     rules,
		byType:    make(map[string]int64),
		installed: make(map[string]bool),
	}
	m.adblock.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetAdblockEnabled toggles rule-based blocking
func (m *Mediator) SetAdblockEnabled(enabled bool) { m.adblock.Store(enabled) }

// SetDataSaverEnabled toggles heavy-resource blocking
func (m *Mediator) SetDataSaverEnabled(enabled bool) { m.dataSaver.Store(enabled) }

// AdblockEnabled reports the adblock toggle
func (m *Mediator) AdblockEnabled() bool { return m.adblock.Load() }

// DataSaverEnabled reports the data saver toggle
func (m *Mediator) DataSaverEnabled() bool { return m.dataSaver.Load() }

// Install wires the mediator into a network session. Installing twice on
// the same session is a no-op and reports false.
func (m *Mediator) Install(s engine.Session) bool {
	m.mu.Lock()
	if m.installed[s.ID()] {
		m.mu.Unlock()
		return false
	}
	m.installed[s.ID()] = true
	m.mu.Unlock()

	s.OnBeforeRequest(func(req engine.Request) bool {
		return m.ShouldBlock(req.URL, req.ResourceType, m.adblock.Load(), m.dataSaver.Load())
	})
	s.OnHeadersReceived(m.ObserveResponse)

	log.Debug().Str("session", s.ID()).Msg("Request mediator installed")
	return true
}

// ShouldBlock decides one request and updates statistics
func (m *Mediator) ShouldBlock(rawURL, resourceType string, adblockEnabled, dataSaverEnabled bool) bool {
	if scheme.IsInternal(rawURL) {
		return false
	}

	hostname, fullURL, ok := splitURL(rawURL)
	if !ok {
		m.recordAllowed()
		return false
	}

	set := m.rules.Current()
	if set.Allows(hostname, fullURL) {
		m.recordAllowed()
		return false
	}

	resourceType = normalizeResourceType(resourceType)
	ruleHit := (adblockEnabled || dataSaverEnabled) && set.Blocks(hostname, fullURL)
	block := (adblockEnabled && ruleHit) ||
		(dataSaverEnabled && (isHeavy(resourceType) || ruleHit))

	if !block {
		m.recordAllowed()
		return false
	}

	if ruleHit {
		m.rules.RecordBlocked()
	}
	m.recordBlocked(resourceType)
	return true
}

// Probe reports the decision for url under the current toggles without
// touching statistics.
func (m *Mediator) Probe(rawURL string) bool {
	if scheme.IsInternal(rawURL) {
		return false
	}
	hostname, fullURL, ok := splitURL(rawURL)
	if !ok {
		return false
	}
	set := m.rules.Current()
	if set.Allows(hostname, fullURL) {
		return false
	}
	return (m.adblock.Load() || m.dataSaver.Load()) && set.Blocks(hostname, fullURL)
}

// ObserveResponse adds a numeric content-length to the transferred total
func (m *Mediator) ObserveResponse(resp engine.Response) {
	for name, value := range resp.Headers {
		if !strings.EqualFold(name, "content-length") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return
		}
		m.transferred.Add(n)
		if m.metrics != nil {
			m.metrics.TransferredBytes.Add(float64(n))
		}
		return
	}
}

// Stats returns a snapshot copy of the counters
func (m *Mediator) Stats() models.DataSaverStats {
	m.mu.Lock()
	byType := make(map[string]int64, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}
	m.mu.Unlock()

	return models.DataSaverStats{
		AllowedRequests:           m.allowed.Load(),
		BlockedRequests:           m.blocked.Load(),
		EstimatedSavedBytes:       m.saved.Load(),
		EstimatedTransferredBytes: m.transferred.Load(),
		BlockedByType:             byType,
	}
}

func (m *Mediator) recordAllowed() {
	m.allowed.Add(1)
	if m.metrics != nil {
		m.metrics.RequestsAllowed.Inc()
	}
}

func (m *Mediator) recordBlocked(resourceType string) {
	saved := EstimatedSavings(resourceType)
	m.blocked.Add(1)
	m.saved.Add(saved)

	m.mu.Lock()
	m.byType[resourceType]++
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RequestsBlocked.WithLabelValues(resourceType).Inc()
		m.metrics.SavedBytes.Add(float64(saved))
	}
}

// EstimatedSavings returns the assumed size of a blocked request
func EstimatedSavings(resourceType string) int64 {
	switch normalizeResourceType(resourceType) {
	case models.ResourceImage:
		return savedImage
	case models.ResourceMedia:
		return savedMedia
	case models.ResourceFont:
		return savedFont
	case models.ResourceScript:
		return savedScript
	case models.ResourceXHR, models.ResourceFetch:
		return savedXHR
	}
	return savedOther
}

func isHeavy(resourceType string) bool {
	switch resourceType {
	case models.ResourceImage, models.ResourceMedia, models.ResourceFont:
		return true
	}
	return false
}

// normalizeResourceType maps engine labels onto the stats labels
func normalizeResourceType(t string) string {
	switch strings.ToLower(t) {
	case "image", "img", "imageset":
		return models.ResourceImage
	case "media":
		return models.ResourceMedia
	case "font":
		return models.ResourceFont
	case "script":
		return models.ResourceScript
	case "xhr", "xmlhttprequest":
		return models.ResourceXHR
	case "fetch":
		return models.ResourceFetch
	case "stylesheet":
		return models.ResourceStyleSheet
	case "document", "mainframe", "subframe":
		return models.ResourceDocument
	}
	return models.ResourceOther
}

// splitURL returns the lowercased hostname and full URL
func splitURL(rawURL string) (hostname, fullURL string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	return strings.ToLower(u.Hostname()), strings.ToLower(u.String()), true
}
