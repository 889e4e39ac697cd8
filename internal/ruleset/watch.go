package ruleset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// watchDebounce coalesces editor save bursts into one reload
const watchDebounce = 250 * time.Millisecond

// Watch reloads the store whenever a rule file in the rules directory changes.
// It blocks until ctx is done. Only meaningful for an OS-backed store.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range []string{s.dir, filepath.Join(s.dir, ListsDir)} {
		// lists/ may not exist until the first update
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Cannot create rules directory")
		}
		if err := w.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Cannot watch rules directory")
		}
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isRuleFileEvent(ev) {
				continue
			}
			pending = time.After(watchDebounce)

		case <-pending:
			pending = nil
			report := s.Reload()
			log.Info().
				Int("files", len(report.Files)).
				Int("converted", report.Convert.Converted).
				Msg("Adblock rules reloaded after file change")

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Rule watcher error")
		}
	}
}

func isRuleFileEvent(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, ".txt") {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
