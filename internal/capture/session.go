package capture

import (
	"fmt"
	"log/slog"
	"sync"
)

// Session owns at most one open capture handle. Every operation that
// touches the handle runs under the session mutex, so a settings
// update or device switch can never race a frame read.
type Session struct {
	mu       sync.Mutex
	backend  Backend
	handle   Handle
	path     string
	settings Settings
	log      *slog.Logger
}

// NewSession creates a session backed by the given platform backend.
func NewSession(backend Backend, log *slog.Logger) *Session {
	return &Session{
		backend:  backend,
		settings: DefaultSettings(),
		log:      log.With("component", "capture"),
	}
}

// Open opens the device at path with the given settings, replacing any
// currently open handle. Controls the device rejects are logged and
// skipped.
func (s *Session) Open(path string, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.openLocked(path, settings)
	return err
}

func (s *Session) openLocked(path string, settings Settings) ([]string, error) {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}

	handle, err := s.backend.Open(path, settings.Width, settings.Height, settings.FPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}

	s.handle = handle
	s.path = path
	s.settings = settings
	rejected := s.applyControlsLocked(settings)
	s.log.Info("Device opened",
		"path", path,
		"backend", s.backend.Name(),
		"width", settings.Width,
		"height", settings.Height,
		"fps", settings.FPS)
	return rejected, nil
}

// applyControlsLocked pushes the optional image controls to the open
// handle and returns the names of controls the device refused. A
// camera that lacks a hue knob should not block brightness.
func (s *Session) applyControlsLocked(settings Settings) []string {
	var rejected []string
	for _, c := range settings.controls() {
		if !s.handle.Set(c.prop, c.value) {
			s.log.Warn("Control not accepted by device", "property", c.prop.String(), "value", c.value)
			rejected = append(rejected, c.prop.String())
		}
	}
	return rejected
}

// Update applies new settings to the open device and returns the
// names of controls the device refused. Geometry changes that the
// handle cannot absorb in place fall back to a full reopen, and a
// handle that has died is reopened the same way.
func (s *Session) Update(settings Settings) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return nil, ErrNotInitialized
	}

	if !s.handle.IsOpened() {
		s.log.Warn("Handle no longer open, reopening", "path", s.path)
		return s.openLocked(s.path, settings)
	}

	geometryChanged := settings.Width != s.settings.Width ||
		settings.Height != s.settings.Height ||
		settings.FPS != s.settings.FPS
	if geometryChanged {
		inPlace := s.handle.Set(PropWidth, settings.Width) &&
			s.handle.Set(PropHeight, settings.Height) &&
			s.handle.Set(PropFPS, settings.FPS)
		if !inPlace {
			s.log.Info("Reopening device for new geometry",
				"width", settings.Width, "height", settings.Height, "fps", settings.FPS)
			return s.openLocked(s.path, settings)
		}
	}

	s.settings = settings
	return s.applyControlsLocked(settings), nil
}

// SwitchTo closes the current device and opens the one at path,
// carrying the current settings over to the new device.
func (s *Session) SwitchTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path == s.path && s.handle != nil && s.handle.IsOpened() {
		return nil
	}

	prev := s.path
	if _, err := s.openLocked(path, s.settings); err != nil {
		return err
	}
	s.log.Info("Switched capture device", "from", prev, "to", path)
	return nil
}

// ReadFrame blocks until the next frame from the open device.
func (s *Session) ReadFrame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return Frame{}, ErrNotInitialized
	}
	frame, err := s.handle.ReadFrame()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return frame, nil
}

// Reopen closes and reopens the current device with its current
// settings. Used to recover a device that stopped producing frames.
func (s *Session) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return ErrNotInitialized
	}
	_, err := s.openLocked(s.path, s.settings)
	return err
}

// Path returns the device node of the open session, or "" when closed.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Settings returns the currently applied settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// IsOpen reports whether a live handle is held.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && s.handle.IsOpened()
}

// Close releases the open handle, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	s.path = ""
	return err
}
