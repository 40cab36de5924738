// Package audio runs the audio relay: a single ffmpeg subprocess that
// captures the active audio source and produces an AAC/ADTS byte
// stream, fanned out to any number of HTTP listeners.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/camkit/camnode/internal/devices"
	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/ffmpeg"
	"github.com/camkit/camnode/internal/metrics"
	"github.com/camkit/camnode/internal/process"
)

// ErrNotRunning is returned by Stream when no relay subprocess is up.
var ErrNotRunning = errors.New("audio: relay not running")

// clientBufferChunks bounds the per-listener queue. A listener that
// stalls longer than this loses chunks instead of stalling the relay.
const clientBufferChunks = 64

// Relay owns the capture subprocess and its listeners.
type Relay struct {
	log     *slog.Logger
	procLog *slog.Logger
	bus     *events.Bus
	bitrate string

	// buildCommand is swappable in tests.
	buildCommand func(kind, source, bitrate string) string

	mu       sync.Mutex
	proc     *process.Process
	procDone chan struct{}
	active   devices.AudioDevice
	activeIx int
	running  bool
	starts   int

	clientsMu sync.Mutex
	clients   map[chan []byte]struct{}
}

// NewRelay creates a stopped relay.
func NewRelay(log *slog.Logger, procLog *slog.Logger, bus *events.Bus, bitrate string) *Relay {
	return &Relay{
		log:          log.With("component", "audio"),
		procLog:      procLog,
		bus:          bus,
		bitrate:      bitrate,
		buildCommand: ffmpeg.AudioRelayCommand,
		clients:      make(map[chan []byte]struct{}),
	}
}

// Start launches the relay for the given source, replacing a running
// subprocess. The old process gets SIGINT and a kill escalation before
// the new one starts, so the capture device is free to reopen.
func (r *Relay) Start(idx int, dev devices.AudioDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()

	command := r.buildCommand(dev.Kind, dev.Source, r.bitrate)
	proc := process.NewProcess("audio-relay", command, r.log)
	proc.SetLogParser(r.procLog, ffmpeg.ParseLogLevel)
	proc.SetStdoutSink(broadcastWriter{r})

	done := make(chan struct{})
	go func() {
		exitCode := proc.Run()
		// Signal exit before touching r.mu: Stop waits on this
		// channel while holding the lock.
		close(done)
		r.mu.Lock()
		if r.proc == proc {
			r.running = false
		}
		r.mu.Unlock()
		r.log.Info("Audio relay exited", "exit_code", exitCode)
	}()

	r.proc = proc
	r.procDone = done
	r.active = dev
	r.activeIx = idx
	r.running = true
	if r.starts > 0 {
		metrics.AudioRelayRestarts.Inc()
	}
	r.starts++

	r.log.Info("Audio relay started", "source", dev.Source, "kind", dev.Kind)
	if r.bus != nil {
		r.bus.Publish(events.AudioRelayStartedEvent{
			ActiveIndex: idx,
			Backend:     dev.Kind,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// Stop terminates the relay subprocess and waits for it to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Relay) stopLocked() {
	if r.proc == nil {
		return
	}
	r.proc.Shutdown()
	select {
	case <-r.procDone:
	case <-time.After(15 * time.Second):
		r.log.Error("Audio relay did not exit on shutdown")
	}
	r.proc = nil
	r.procDone = nil
	r.running = false
}

// Active returns the current source and whether the relay is running.
func (r *Relay) Active() (int, devices.AudioDevice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeIx, r.active, r.running
}

// ContentType returns the media type of the relayed stream.
func (r *Relay) ContentType() string { return "audio/aac" }

// Stream copies relay output to w until ctx is done or the client
// goes away. Joining mid-stream is fine: ADTS frames are
// self-synchronizing, so decoders lock on at the next frame header.
func (r *Relay) Stream(ctx context.Context, w io.Writer) error {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	ch := make(chan []byte, clientBufferChunks)
	r.clientsMu.Lock()
	r.clients[ch] = struct{}{}
	r.clientsMu.Unlock()
	defer func() {
		r.clientsMu.Lock()
		delete(r.clients, ch)
		r.clientsMu.Unlock()
	}()

	type flusher interface{ Flush() }
	fl, _ := w.(flusher)

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk := <-ch:
			if _, err := w.Write(chunk); err != nil {
				return nil // client disconnected
			}
			if fl != nil {
				fl.Flush()
			}
		}
	}
}

// broadcast delivers a chunk to every listener, dropping it for
// listeners whose queue is full.
func (r *Relay) broadcast(p []byte) {
	chunk := append([]byte(nil), p...)
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	for ch := range r.clients {
		select {
		case ch <- chunk:
		default:
		}
	}
}

// broadcastWriter adapts the relay's fanout to the io.Writer the
// process stdout sink expects.
type broadcastWriter struct{ relay *Relay }

func (w broadcastWriter) Write(p []byte) (int, error) {
	w.relay.broadcast(p)
	return len(p), nil
}

// Describe returns a short status string for health reporting.
func (r *Relay) Describe() string {
	idx, dev, running := r.Active()
	if !running {
		return "stopped"
	}
	return fmt.Sprintf("relaying %s (index %d)", dev.Source, idx)
}
