package preference

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/teemow/conflictfewer/internal/logging"
)

// Validation errors returned by Store.Set and Preference.Validate.
var (
	ErrInvalidWorkHours = errors.New("work hours start must be before end")
	ErrNegativeBuffer   = errors.New("buffer minutes must not be negative")
	ErrInvalidTimezone  = errors.New("unknown timezone")
)

// Store holds availability preferences per user. It supports concurrent
// reads and last-writer-wins updates per user. When a path is configured,
// the store loads it at startup and writes through on every update.
type Store struct {
	mu    sync.RWMutex
	prefs map[string]Preference
	path  string

	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersistence makes the store load from and write through to the given
// JSON file.
func WithPersistence(path string) StoreOption {
	return func(s *Store) {
		s.path = path
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a preference store. If persistence is configured and the
// file exists, stored preferences are loaded; a missing file is not an error.
func NewStore(opts ...StoreOption) (*Store, error) {
	s := &Store{
		prefs:  make(map[string]Preference),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithService(s.logger, "preference")

	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns the user's preference, or the system default when unset.
func (s *Store) Get(userID string) Preference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[userID]; ok {
		return p
	}
	return Default()
}

// Set merges the partial update onto the user's current preference
// (the system default when unset), validates the result, and stores it.
// The stored record is returned.
func (s *Store) Set(userID string, update Update) (Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.prefs[userID]
	if !ok {
		current = Default()
	}

	merged := update.apply(current)
	if err := merged.Validate(); err != nil {
		return Preference{}, err
	}

	s.prefs[userID] = merged

	if s.path != "" {
		if err := s.persistLocked(); err != nil {
			// The in-memory record is already updated; surface the write
			// failure so the caller knows persistence is degraded.
			return merged, fmt.Errorf("failed to persist preferences: %w", err)
		}
	}

	s.logger.Info("preferences updated", logging.UserHash(userID))
	return merged, nil
}

// load reads the persisted preference map. A missing file leaves the store
// empty.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read preferences file: %w", err)
	}

	prefs := make(map[string]Preference)
	if err := json.Unmarshal(data, &prefs); err != nil {
		return fmt.Errorf("failed to parse preferences file %s: %w", s.path, err)
	}

	s.prefs = prefs
	return nil
}

// persistLocked writes the preference map. Callers must hold mu.
// The write goes through a temp file and rename so a crash mid-write never
// truncates the stored preferences.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.prefs, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
