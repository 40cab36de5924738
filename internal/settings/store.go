// Package settings persists camera settings across restarts. The
// store mirrors the live capture configuration into a TOML file and
// can follow external edits to that file at runtime.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/config"
)

// State is everything the store persists.
type State struct {
	// ActiveCamera is the index of the capture source to open on
	// startup.
	ActiveCamera int `toml:"active_camera"`
	// ActiveAudio is the index of the audio source for the relay.
	ActiveAudio int `toml:"active_audio"`
	// Camera holds the capture settings applied to the open device.
	Camera capture.Settings `toml:"camera"`
}

// DefaultState seeds a fresh settings file.
func DefaultState() State {
	return State{Camera: capture.DefaultSettings()}
}

// Store owns the settings file.
type Store struct {
	path string
	log  *slog.Logger

	mu    sync.RWMutex
	state State

	watcher *config.Watcher[State]
}

// NewStore loads state from path, seeding the file with defaults when
// it does not exist yet.
func NewStore(path string, log *slog.Logger) (*Store, error) {
	s := &Store{
		path:  path,
		log:   log.With("component", "settings"),
		state: DefaultState(),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &s.state); err != nil {
			return nil, fmt.Errorf("parse settings file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		s.log.Info("Seeded settings file", "path", path)
	default:
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}

	return s, nil
}

// Get returns the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn to the state under the store lock and persists
// the result.
func (s *Store) Update(fn func(*State)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	if err := s.persistLocked(); err != nil {
		return s.state, err
	}
	return s.state, nil
}

// Reload re-reads the file, replacing in-memory state.
func (s *Store) Reload() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}, fmt.Errorf("read settings file %s: %w", s.path, err)
	}
	var state State
	if err := toml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse settings file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.log.Info("Settings reloaded from file", "path", s.path)
	return state, nil
}

// Watch follows external edits to the settings file and invokes
// onChange with each successfully parsed state. Call Close to stop.
func (s *Store) Watch(onChange func(State)) error {
	loader := func(path string) (State, error) {
		return s.Reload()
	}
	s.watcher = config.NewWatcher(s.path, loader, s.log)
	s.watcher.OnReload(onChange)
	return s.watcher.Start()
}

// Close stops the file watcher, if running.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

func (s *Store) persistLocked() error {
	data, err := toml.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
