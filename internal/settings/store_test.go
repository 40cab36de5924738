package settings

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/camkit/camnode/internal/capture"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewStoreSeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	s, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := s.Get(); got.Camera.Width != 1280 || got.Camera.Height != 720 {
		t.Errorf("unexpected seeded camera settings: %+v", got.Camera)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("settings file not created: %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	s, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	brightness := 42
	if _, err := s.Update(func(st *State) {
		st.ActiveCamera = 2
		st.Camera.FPS = 15
		st.Camera.Brightness = &brightness
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reopened, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Get()
	if got.ActiveCamera != 2 {
		t.Errorf("ActiveCamera = %d, want 2", got.ActiveCamera)
	}
	if got.Camera.FPS != 15 {
		t.Errorf("FPS = %d, want 15", got.Camera.FPS)
	}
	if got.Camera.Brightness == nil || *got.Camera.Brightness != 42 {
		t.Errorf("Brightness = %v, want 42", got.Camera.Brightness)
	}
}

func TestStoreReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	s, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	edited := strings.Join([]string{
		"active_camera = 1",
		"active_audio = 3",
		"",
		"[camera]",
		"width = 640",
		"height = 480",
		"fps = 10",
	}, "\n")
	if err := os.WriteFile(path, []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got.ActiveAudio != 3 || got.Camera.Width != 640 {
		t.Errorf("reloaded state = %+v", got)
	}
	if s.Get().Camera.Height != 480 {
		t.Errorf("in-memory state not replaced")
	}
}

func TestStoreRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("not valid toml ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path, testLogger()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultStateMatchesCaptureDefaults(t *testing.T) {
	if DefaultState().Camera != capture.DefaultSettings() {
		t.Error("default state should use capture defaults")
	}
}
