package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bnema/vibeview/internal/models"
)

const (
	sessionsFile = "sessions.yaml"

	// AutosaveName names the session holding the last window state
	AutosaveName = "__autosave__"
)

// ErrSessionNotFound is returned for an unknown session id
var ErrSessionNotFound = errors.New("session not found")

type sessionsDoc struct {
	Sessions []models.Session `yaml:"sessions"`
}

// Sessions stores named tab sets in one YAML file
type Sessions struct {
	fs   afero.Fs
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewSessions stores sessions under dir
func NewSessions(fs afero.Fs, dir string) *Sessions {
	return &Sessions{fs: fs, path: filepath.Join(dir, sessionsFile), now: time.Now}
}

// Save creates a new session
func (s *Sessions) Save(name string, tabs []models.SessionTab) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.Session{}, err
	}

	now := s.now()
	session := models.Session{
		ID:           uuid.New().String(),
		Name:         name,
		Tabs:         tabs,
		CreatedAt:    now,
		LastModified: now,
	}
	doc.Sessions = append(doc.Sessions, session)
	if err := writeYAML(s.fs, s.path, doc); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// Get returns the session with id
func (s *Sessions) Get(id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.Session{}, err
	}
	for _, session := range doc.Sessions {
		if session.ID == id {
			return session, nil
		}
	}
	return models.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// List returns all sessions, most recently modified first
func (s *Sessions) List() ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(doc.Sessions, func(i, j int) bool {
		return doc.Sessions[i].LastModified.After(doc.Sessions[j].LastModified)
	})
	return doc.Sessions, nil
}

// Update replaces the tabs of a session
func (s *Sessions) Update(id string, tabs []models.SessionTab) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Sessions {
		if doc.Sessions[i].ID == id {
			doc.Sessions[i].Tabs = tabs
			doc.Sessions[i].LastModified = s.now()
			return writeYAML(s.fs, s.path, doc)
		}
	}
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Delete removes a session
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Sessions {
		if doc.Sessions[i].ID == id {
			doc.Sessions = append(doc.Sessions[:i], doc.Sessions[i+1:]...)
			return writeYAML(s.fs, s.path, doc)
		}
	}
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Autosave returns the autosave session, if one exists
func (s *Sessions) Autosave() (models.Session, bool, error) {
	sessions, err := s.List()
	if err != nil {
		return models.Session{}, false, err
	}
	for _, session := range sessions {
		if session.Name == AutosaveName {
			return session, true, nil
		}
	}
	return models.Session{}, false, nil
}

// SaveAutosave upserts the autosave session
func (s *Sessions) SaveAutosave(tabs []models.SessionTab) error {
	existing, ok, err := s.Autosave()
	if err != nil {
		return err
	}
	if ok {
		return s.Update(existing.ID, tabs)
	}
	_, err = s.Save(AutosaveName, tabs)
	return err
}

// Recovery returns the tabs of the autosave session. An empty result means
// there is nothing to restore.
func (s *Sessions) Recovery() ([]models.SessionTab, error) {
	session, ok, err := s.Autosave()
	if err != nil || !ok {
		return nil, err
	}
	return session.Tabs, nil
}

// ClearRecovery deletes the autosave session
func (s *Sessions) ClearRecovery() error {
	session, ok, err := s.Autosave()
	if err != nil || !ok {
		return err
	}
	return s.Delete(session.ID)
}

func (s *Sessions) load() (sessionsDoc, error) {
	var doc sessionsDoc
	if err := readYAML(s.fs, s.path, &doc); err != nil {
		return sessionsDoc{}, fmt.Errorf("load sessions: %w", err)
	}
	return doc, nil
}
