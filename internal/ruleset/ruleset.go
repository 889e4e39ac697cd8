// Package ruleset owns the live block and allow rule lists. Readers get an
// immutable snapshot; Reload and AddRule build a new snapshot and swap it in.
package ruleset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/bnema/vibeview/internal/converter"
	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/parser"
)

// ListsDir is the subdirectory holding downloaded remote lists
const ListsDir = "lists"

// Set is one immutable generation of compiled rules
type Set struct {
	Generation uint64
	Block      []models.FilterRule
	Allow      []models.FilterRule
}

// Allows reports whether any allow rule matches
func (s *Set) Allows(hostname, fullURL string) bool {
	return converter.MatchesAny(hostname, fullURL, s.Allow)
}

// Blocks reports whether any block rule matches
func (s *Set) Blocks(hostname, fullURL string) bool {
	return converter.MatchesAny(hostname, fullURL, s.Block)
}

// Stats summarizes the live rules and the running block count
type Stats struct {
	BlockRules int   `json:"rules"`
	AllowRules int   `json:"whitelist"`
	Blocked    int64 `json:"blocked"`
}

// LoadReport describes one Reload
type LoadReport struct {
	Files   []string
	Parse   parser.Stats
	Convert converter.Stats
	Errors  []error
}

// Store loads rule files and publishes rule snapshots
type Store struct {
	fs          afero.Fs
	dir         string
	defaultPath string
	customPath  string

	current atomic.Pointer[Set]
	blocked atomic.Int64

	// serializes writers; readers never take it
	mu sync.Mutex
}

// New creates a store for the configured rule files. Nothing is read until Reload.
func New(fs afero.Fs, cfg models.RulesConfig) *Store {
	s := &Store{
		fs:          fs,
		dir:         cfg.Dir,
		defaultPath: filepath.Join(cfg.Dir, cfg.DefaultFile),
		customPath:  filepath.Join(cfg.Dir, cfg.CustomFile),
	}
	s.current.Store(&Set{})
	return s
}

// Dir returns the rules directory
func (s *Store) Dir() string { return s.dir }

// DefaultPath returns the default rule file path
func (s *Store) DefaultPath() string { return s.defaultPath }

// CustomPath returns the custom rule file path
func (s *Store) CustomPath() string { return s.customPath }

// Current returns the live rule snapshot
func (s *Store) Current() *Set {
	return s.current.Load()
}

// Reload rebuilds the rule set from disk and swaps it in. Unreadable files
// are logged and contribute no rules.
func (s *Store) Reload() LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := LoadReport{}
	if err := s.seedDefault(); err != nil {
		log.Error().Err(err).Str("path", s.defaultPath).Msg("Failed to seed default adblock rules")
		report.Errors = append(report.Errors, err)
	}

	p := parser.New()
	var filters []models.Filter
	for _, path := range s.sourceFiles() {
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Error().Err(err).Str("path", path).Msg("Failed to read adblock rules")
				report.Errors = append(report.Errors, err)
			}
			continue
		}

		parsed, err := p.Parse(bytes.NewReader(data))
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to parse adblock rules")
			report.Errors = append(report.Errors, err)
		}
		filters = append(filters, parsed...)
		report.Files = append(report.Files, path)
	}

	c := converter.New()
	block, allow := c.Convert(filters)

	next := &Set{
		Generation: s.current.Load().Generation + 1,
		Block:      converter.Deduplicate(block),
		Allow:      converter.Deduplicate(allow),
	}
	s.current.Store(next)

	report.Parse = p.Stats()
	report.Convert = c.Stats()

	log.Debug().
		Uint64("generation", next.Generation).
		Int("block", len(next.Block)).
		Int("allow", len(next.Allow)).
		Int("files", len(report.Files)).
		Msg("Adblock rules loaded")

	return report
}

// AddRule appends one custom rule to the custom rule file and publishes it.
// Blank input is ignored. Nothing is published when the append fails.
func (s *Store) AddRule(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	rule, allow := converter.Compile(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendCustom(raw); err != nil {
		return err
	}
	if rule == nil {
		return nil
	}

	cur := s.current.Load()
	next := &Set{
		Generation: cur.Generation + 1,
		Block:      cur.Block,
		Allow:      cur.Allow,
	}
	if allow {
		next.Allow = appendRule(cur.Allow, *rule)
	} else {
		next.Block = appendRule(cur.Block, *rule)
	}
	s.current.Store(next)
	return nil
}

func (s *Store) appendCustom(raw string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.customPath), 0755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}
	f, err := s.fs.OpenFile(s.customPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open custom rules: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(raw + "\n"); err != nil {
		return fmt.Errorf("append custom rule: %w", err)
	}
	return nil
}

// RecordBlocked increments the running block counter
func (s *Store) RecordBlocked() {
	s.blocked.Add(1)
}

// ResetBlocked zeroes the running block counter
func (s *Store) ResetBlocked() {
	s.blocked.Store(0)
}

// Stats returns rule counts and the running block count
func (s *Store) Stats() Stats {
	cur := s.current.Load()
	return Stats{
		BlockRules: len(cur.Block),
		AllowRules: len(cur.Allow),
		Blocked:    s.blocked.Load(),
	}
}

// seedDefault writes the bundled rules when the default file is absent
func (s *Store) seedDefault() error {
	exists, err := afero.Exists(s.fs, s.defaultPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.defaultPath), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.defaultPath, []byte(DefaultRules), 0644)
}

// sourceFiles lists rule files in load order: default, remote lists, custom
func (s *Store) sourceFiles() []string {
	files := []string{s.defaultPath}

	matches, err := afero.Glob(s.fs, filepath.Join(s.dir, ListsDir, "*.txt"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list downloaded filter lists")
	}
	sort.Strings(matches)
	files = append(files, matches...)

	return append(files, s.customPath)
}

// appendRule copies so that published snapshots are never mutated
func appendRule(rules []models.FilterRule, r models.FilterRule) []models.FilterRule {
	out := make([]models.FilterRule, len(rules), len(rules)+1)
	copy(out, rules)
	return append(out, r)
}
