package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/bnema/vibeview/internal/models"
)

// Parser parses adblock-style filter lists
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Block       int
	Allow       int
	Comments    int
	Unsupported int
	SkipReasons map[string]int // Detailed breakdown of skipped lines
}

// SkipReason constants
const (
	SkipEmptyPattern = "empty-pattern"
	SkipCosmetic     = "cosmetic (##, #@#)"
)

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads filter content and returns the usable filters.
// Comments and unsupported lines are counted and dropped.
func (p *Parser) Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.stats.Total++

		filter, reason := ParseLine(line)
		if reason != "" {
			p.stats.Unsupported++
			p.stats.SkipReasons[reason]++
			continue
		}

		switch filter.Type {
		case models.FilterTypeComment:
			p.stats.Comments++
			continue
		case models.FilterTypeAllow:
			p.stats.Allow++
		case models.FilterTypeBlock:
			p.stats.Block++
		}

		filters = append(filters, filter)
	}

	return filters, scanner.Err()
}

// ParseLine classifies a single filter line. A non-empty reason means the
// line carries no usable pattern and must be discarded.
func ParseLine(line string) (models.Filter, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.Filter{}, SkipEmptyPattern
	}

	// Comments and list headers
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
		return models.Filter{Type: models.FilterTypeComment, Raw: line}, ""
	}

	if isCosmetic(line) {
		return models.Filter{}, SkipCosmetic
	}

	filter := models.Filter{Type: models.FilterTypeBlock, Raw: line}
	s := strings.ToLower(line)

	// Exception rules (whitelist)
	if strings.HasPrefix(s, "@@") {
		filter.Type = models.FilterTypeAllow
		s = s[2:]
	}

	// Options are stripped, never interpreted
	if idx := strings.Index(s, "$"); idx != -1 {
		filter.Options = s[idx+1:]
		s = s[:idx]
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return models.Filter{}, SkipEmptyPattern
	}
	filter.Pattern = s

	return filter, ""
}

// isCosmetic checks for element hiding syntax
func isCosmetic(line string) bool {
	for _, sep := range []string{"##", "#@#", "#?#", "#$#"} {
		if strings.Contains(line, sep) {
			return true
		}
	}
	return false
}
