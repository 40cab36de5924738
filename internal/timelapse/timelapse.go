// Package timelapse periodically saves stills from the streaming
// pipeline to disk.
package timelapse

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StillSource is the slice of the streaming pipeline the worker needs.
type StillSource interface {
	Still() ([]byte, error)
	UsingFallback() bool
}

// Options configures a Worker.
type Options struct {
	// Dir receives the captured frames.
	Dir string
	// Interval spaces out captures.
	Interval time.Duration
	// SkipFallback suppresses captures while the pipeline serves the
	// fallback image, so a dead camera does not fill the disk with
	// placeholder frames.
	SkipFallback bool
}

// Worker captures stills on a fixed interval.
type Worker struct {
	source StillSource
	opts   Options
	log    *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewWorker creates a timelapse worker. It does nothing until Start.
func NewWorker(source StillSource, log *slog.Logger, opts Options) *Worker {
	return &Worker{
		source: source,
		opts:   opts,
		log:    log.With("component", "timelapse"),
	}
}

// Start begins periodic capture. Starting a running worker is a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return nil
	}
	if w.opts.Interval <= 0 {
		return fmt.Errorf("timelapse interval must be positive, got %v", w.opts.Interval)
	}
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return fmt.Errorf("create timelapse directory: %w", err)
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.stop, w.done)
	w.log.Info("Timelapse started", "dir", w.opts.Dir, "interval", w.opts.Interval)
	return nil
}

// Stop halts capture and waits for the worker goroutine to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *Worker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.captureOnce()
		}
	}
}

func (w *Worker) captureOnce() {
	if w.opts.SkipFallback && w.source.UsingFallback() {
		w.log.Debug("Skipping timelapse frame, stream is on fallback")
		return
	}
	jpeg, err := w.source.Still()
	if err != nil {
		w.log.Warn("Timelapse capture failed", "error", err)
		return
	}
	path := filepath.Join(w.opts.Dir, fmt.Sprintf("timelapse_%s.jpg", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, jpeg, 0644); err != nil {
		w.log.Warn("Failed to save timelapse frame", "error", err, "path", path)
		return
	}
	w.log.Debug("Timelapse frame saved", "path", path, "bytes", len(jpeg))
}
