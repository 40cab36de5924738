package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func watcherLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcherNotifiesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.toml")
	if err := os.WriteFile(path, []byte("value = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := func(p string) (string, error) {
		data, err := os.ReadFile(p)
		return string(data), err
	}

	w := NewWatcher(path, loader, watcherLogger(), WithDebounce[string](20*time.Millisecond))
	got := make(chan string, 1)
	w.OnReload(func(content string) {
		select {
		case got <- content:
		default:
		}
	})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("value = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case content := <-got:
		if content != "value = 2\n" {
			t.Errorf("handler saw %q", content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never notified")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.toml")
	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := func(p string) (string, error) { return "loaded", nil }
	w := NewWatcher(path, loader, watcherLogger(), WithDebounce[string](10*time.Millisecond))

	called := make(chan struct{}, 4)
	unsub := w.OnReload(func(string) { called <- struct{}{} })
	unsub()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
		t.Error("unsubscribed handler was called")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.toml")
	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	loadErr := make(chan error, 1)
	loader := func(p string) (string, error) { return "", os.ErrInvalid }
	w := NewWatcher(path, loader, watcherLogger(),
		WithDebounce[string](10*time.Millisecond),
		WithErrorHandler[string](func(err error) {
			select {
			case loadErr <- err:
			default:
			}
		}))
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-loadErr:
		if err == nil {
			t.Error("expected load error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("error handler never called")
	}
}

func TestWatcherStartFailsForMissingFile(t *testing.T) {
	w := NewWatcher("/nonexistent/file.toml", func(string) (int, error) { return 0, nil }, watcherLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error watching missing file")
	}
}
