package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/bnema/vibeview/internal/models"
)

const (
	historyFile         = "history.yaml"
	defaultHistoryLimit = 1000
)

type historyDoc struct {
	Items []models.HistoryItem `yaml:"items"`
}

// History is a YAML-backed, newest-first list of visited pages. A URL
// appears at most once.
type History struct {
	fs    afero.Fs
	path  string
	limit int

	mu sync.Mutex
}

// NewHistory stores history under dir
func NewHistory(fs afero.Fs, dir string, limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{fs: fs, path: filepath.Join(dir, historyFile), limit: limit}
}

// AddHistoryItem moves item to the front, dropping older entries past the limit
func (h *History) AddHistoryItem(item models.HistoryItem) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, err := h.load()
	if err != nil {
		return err
	}

	items := make([]models.HistoryItem, 0, len(doc.Items)+1)
	items = append(items, item)
	for _, existing := range doc.Items {
		if existing.URL != item.URL {
			items = append(items, existing)
		}
	}
	if len(items) > h.limit {
		items = items[:h.limit]
	}

	return writeYAML(h.fs, h.path, historyDoc{Items: items})
}

// List returns all entries, newest first
func (h *History) List() ([]models.HistoryItem, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, err := h.load()
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// Search returns entries whose URL or title contains query, case-insensitive
func (h *History) Search(query string) ([]models.HistoryItem, error) {
	items, err := h.List()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var out []models.HistoryItem
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.URL), q) || strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Clear removes every entry
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return writeYAML(h.fs, h.path, historyDoc{})
}

func (h *History) load() (historyDoc, error) {
	var doc historyDoc
	if err := readYAML(h.fs, h.path, &doc); err != nil {
		return historyDoc{}, fmt.Errorf("load history: %w", err)
	}
	return doc, nil
}
