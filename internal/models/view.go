package models

import "time"

// Size is the content area of the host window
type Size struct {
	Width  int
	Height int
}

// Rect positions a rendering surface inside the host window
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// TabSnapshot is the persisted form of an open tab
type TabSnapshot struct {
	ID    string `json:"id" yaml:"id"`
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`
}

// HistoryItem is one visited page
type HistoryItem struct {
	URL       string    `yaml:"url"`
	Title     string    `yaml:"title"`
	Timestamp time.Time `yaml:"timestamp"`
}

// DataSaverStats is a point-in-time copy of the request counters
type DataSaverStats struct {
	AllowedRequests           int64            `json:"allowed_requests"`
	BlockedRequests           int64            `json:"blocked_requests"`
	EstimatedSavedBytes       int64            `json:"estimated_saved_bytes"`
	EstimatedTransferredBytes int64            `json:"estimated_transferred_bytes"`
	BlockedByType             map[string]int64 `json:"blocked_by_type"`
}

// SessionTab is a tab entry inside a saved session
type SessionTab struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

// Session is a named set of tabs
type Session struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Tabs         []SessionTab `yaml:"tabs"`
	CreatedAt    time.Time    `yaml:"created_at"`
	LastModified time.Time    `yaml:"last_modified"`
}
