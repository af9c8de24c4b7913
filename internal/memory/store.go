package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kbase/internal/domain"
)

// Store is the durable preference and session state. Every mutation is
// written to disk before the call returns; there is no in-memory-only mode.
type Store struct {
	path    string
	prefs   domain.Preferences
	session domain.SessionStatus
}

type fileState struct {
	UserPreferences domain.Preferences   `json:"user_preferences"`
	SessionStatus   domain.SessionStatus `json:"session_status"`
}

// DefaultPreferences seeds the category vocabulary for a fresh store.
func DefaultPreferences() domain.Preferences {
	return domain.Preferences{
		CategoryHierarchy: []string{"Technology", "Life", "Work", "Study"},
		PreferredLevel3:   map[string][]string{},
	}
}

// Load reads prior state from path, or returns a store with default state if
// no file exists yet. A file that exists but does not decode is an error;
// malformed state is never silently repaired.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.prefs = DefaultPreferences()
			return s, nil
		}
		return nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed memory file %s: %w", path, err)
	}
	s.prefs = state.UserPreferences
	s.session = state.SessionStatus
	if s.prefs.PreferredLevel3 == nil {
		s.prefs.PreferredLevel3 = map[string][]string{}
	}
	return s, nil
}

// Preferences returns the current user preferences.
func (s *Store) Preferences() domain.Preferences { return s.prefs }

// Session returns the current session status.
func (s *Store) Session() domain.SessionStatus { return s.session }

// UpdatePreferences replaces the top-level preference keys and persists.
func (s *Store) UpdatePreferences(prefs domain.Preferences) error {
	s.prefs = prefs
	return s.save()
}

// UpdateSession records filename as the last processed document, increments
// the total counter and persists.
func (s *Store) UpdateSession(filename string) error {
	s.session.LastProcessed = filename
	s.session.TotalProcessed++
	return s.save()
}

func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(fileState{UserPreferences: s.prefs, SessionStatus: s.session}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
