// Package recorder implements the single-slot recording engine. At
// most one recording session exists at a time; starting while one is
// active fails rather than queueing.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/ffmpeg"
	"github.com/camkit/camnode/internal/metrics"
)

// State is the recording slot's lifecycle position.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

// Strategy names accepted in Options.Strategy.
const (
	StrategyFrameWriter = "frame-writer"
	StrategyMux         = "mux"
)

// strategy runs one recording session until its context is cancelled.
type strategy interface {
	name() string
	run(ctx context.Context) error
}

// Status is the externally visible recording state.
type Status struct {
	State      State   `json:"state" example:"active" doc:"Recording slot state"`
	OutputPath string  `json:"output_path,omitempty" example:"/media/videos/stream_20250127_103000.mp4" doc:"Output file of the current or last session"`
	Strategy   string  `json:"strategy,omitempty" example:"frame-writer" doc:"Recording strategy in use"`
	Duration   float64 `json:"duration_seconds" example:"12.5" doc:"Seconds since the session started"`
}

// Options configures an Engine.
type Options struct {
	// OutputDir receives recording files.
	OutputDir string
	// StreamURL is the service's own MJPEG endpoint.
	StreamURL string
	// AudioURL is the service's AAC endpoint, used by the mux strategy.
	AudioURL string
	// Strategy selects frame-writer (default) or mux.
	Strategy string
	// FPS supplies the current capture frame rate for pacing.
	FPS func() int
	// Probe checks encoder availability; defaults to asking ffmpeg.
	Probe func(codec string) bool
	// Bus receives recording lifecycle events when set.
	Bus *events.Bus
}

// Engine owns the recording slot.
type Engine struct {
	opts    Options
	log     *slog.Logger
	procLog *slog.Logger

	// buildStrat is swappable in tests.
	buildStrat func(output, codec string) strategy

	mu        sync.Mutex
	state     State
	output    string
	strat     string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan error
}

// NewEngine creates an idle engine.
func NewEngine(log *slog.Logger, procLog *slog.Logger, opts Options) *Engine {
	if opts.Probe == nil {
		opts.Probe = ffmpeg.ProbeEncoder
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyFrameWriter
	}
	e := &Engine{
		opts:    opts,
		log:     log.With("component", "recorder"),
		procLog: procLog,
		state:   StateIdle,
	}
	e.buildStrat = e.buildStrategy
	return e
}

// Start begins a recording session. An empty filename gets a
// timestamped default. Returns ErrAlreadyActive while a live session
// holds the slot; a session whose worker already died is replaced.
func (e *Engine) Start(filename string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive || e.state == StateStarting {
		select {
		case err := <-e.done:
			// Worker died without a Stop call; reclaim the slot.
			e.log.Warn("Replacing stale recording session", "output", e.output, "error", err)
			e.finalizeLocked(err)
		default:
			return "", ErrAlreadyActive
		}
	}
	if e.state == StateStopping {
		return "", ErrAlreadyActive
	}

	if filename == "" {
		filename = "stream_" + time.Now().Format("20060102_150405") + ".mp4"
	}
	output := filepath.Join(e.opts.OutputDir, filename)
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	e.state = StateStarting
	codec := selectCodec(output, e.opts.Probe)
	strat := e.buildStrat(output, codec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- strat.run(ctx)
	}()

	e.output = output
	e.strat = strat.name()
	e.startedAt = time.Now()
	e.cancel = cancel
	e.done = done
	e.state = StateActive

	metrics.RecordingActive.Set(1)
	e.log.Info("Recording started", "output", output, "strategy", e.strat, "codec", codec)
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(events.RecordingStartedEvent{
			OutputPath: output,
			Strategy:   e.strat,
			Timestamp:  e.startedAt.UTC().Format(time.RFC3339),
		})
	}
	return output, nil
}

func (e *Engine) buildStrategy(output, codec string) strategy {
	fps := 30
	if e.opts.FPS != nil {
		fps = e.opts.FPS()
	}
	if e.opts.Strategy == StrategyMux && e.opts.AudioURL != "" {
		return &muxer{
			command: ffmpeg.MuxCommand(e.opts.StreamURL, e.opts.AudioURL, codec, output),
			log:     e.log,
			procLog: e.procLog,
		}
	}
	return &frameWriter{
		streamURL: e.opts.StreamURL,
		command:   ffmpeg.FrameWriterCommand(fps, codec, output),
		fps:       fps,
		log:       e.log,
		procLog:   e.procLog,
	}
}

// Stop ends the active session and returns its output path.
func (e *Engine) Stop() (string, error) {
	e.mu.Lock()
	if e.state != StateActive && e.state != StateStarting {
		e.mu.Unlock()
		return "", ErrNotRecording
	}
	e.state = StateStopping
	cancel := e.cancel
	done := e.done
	output := e.output
	e.mu.Unlock()

	cancel()
	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(finalizeTimeout + 5*time.Second):
		e.log.Error("Recording worker did not finish", "output", output)
	}

	e.mu.Lock()
	e.finalizeLocked(runErr)
	e.mu.Unlock()
	return output, nil
}

// finalizeLocked resets the slot after a session ends.
func (e *Engine) finalizeLocked(runErr error) {
	aborted := runErr != nil
	result := "completed"
	if aborted {
		result = "aborted"
		e.log.Error("Recording session aborted", "output", e.output, "error", runErr)
	}
	metrics.RecordingActive.Set(0)
	metrics.RecordingsTotal.WithLabelValues(result).Inc()
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(events.RecordingStoppedEvent{
			OutputPath: e.output,
			Aborted:    aborted,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}
	e.state = StateIdle
	if e.cancel != nil {
		// The worker may have died on its own; cancelling here tears
		// down its stream reader as well. Redundant after Stop.
		e.cancel()
		e.cancel = nil
	}
	e.done = nil
}

// Status reports the current slot state. A worker that died since the
// last call is folded back to idle here, so status never claims an
// active session without a live worker.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive {
		select {
		case err := <-e.done:
			e.finalizeLocked(err)
		default:
		}
	}

	status := Status{State: e.state, OutputPath: e.output, Strategy: e.strat}
	if e.state == StateActive || e.state == StateStopping {
		status.Duration = time.Since(e.startedAt).Seconds()
	}
	return status
}
