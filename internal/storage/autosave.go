package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/models"
)

// TabSource lists the tabs worth restoring
type TabSource interface {
	TabsForStorage() []models.TabSnapshot
}

// Autosaver periodically writes the open tabs to the autosave session
type Autosaver struct {
	source   TabSource
	sessions *Sessions
	interval time.Duration
}

// NewAutosaver creates an autosaver; a non-positive interval uses 30s
func NewAutosaver(source TabSource, sessions *Sessions, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Autosaver{source: source, sessions: sessions, interval: interval}
}

// Run saves on every tick until ctx is done, then saves once more
func (a *Autosaver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.SaveNow()
			return ctx.Err()
		case <-ticker.C:
			a.SaveNow()
		}
	}
}

// SaveNow snapshots the open tabs. Nothing is written when no tab is open.
func (a *Autosaver) SaveNow() {
	snapshot := a.source.TabsForStorage()
	if len(snapshot) == 0 {
		return
	}

	tabs := make([]models.SessionTab, 0, len(snapshot))
	for _, t := range snapshot {
		tabs = append(tabs, models.SessionTab{URL: t.URL, Title: t.Title})
	}
	if err := a.sessions.SaveAutosave(tabs); err != nil {
		log.Error().Err(err).Msg("Autosave failed")
		return
	}
	log.Debug().Int("tabs", len(tabs)).Msg("Session autosaved")
}
