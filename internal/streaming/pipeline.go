// Package streaming serves the live MJPEG stream. Each connected
// client runs its own producer loop against the capture session; when
// the camera stops delivering frames the loop degrades to a fallback
// image and keeps probing for recovery, so clients never see the
// connection drop.
package streaming

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/metrics"
)

// Boundary separates frames in the multipart stream.
const Boundary = "frame"

// DefaultReconnectDelay spaces out device reopen attempts while the
// stream is serving fallback frames.
const DefaultReconnectDelay = 2 * time.Second

// FrameSource is the slice of the capture session the pipeline needs.
type FrameSource interface {
	ReadFrame() (capture.Frame, error)
	Reopen() error
	Settings() capture.Settings
}

// Pipeline fans the capture session out to MJPEG clients.
type Pipeline struct {
	source         FrameSource
	fallback       []byte
	reconnectDelay time.Duration
	bus            *events.Bus
	log            *slog.Logger

	usingFallback atomic.Bool
	clients       atomic.Int32
}

// Config configures a Pipeline.
type Config struct {
	// FallbackImagePath optionally points at a JPEG served while the
	// camera is unavailable. A generated placeholder is used when
	// empty or unreadable.
	FallbackImagePath string
	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration
	// Bus receives StreamFallbackEvent transitions when set.
	Bus *events.Bus
}

// NewPipeline creates a pipeline over the given frame source.
func NewPipeline(source FrameSource, log *slog.Logger, cfg Config) *Pipeline {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	settings := source.Settings()
	return &Pipeline{
		source:         source,
		fallback:       loadFallbackImage(cfg.FallbackImagePath, settings.Width, settings.Height),
		reconnectDelay: delay,
		bus:            cfg.Bus,
		log:            log.With("component", "streaming"),
	}
}

// ContentType returns the multipart content type for stream responses.
func (p *Pipeline) ContentType() string {
	return "multipart/x-mixed-replace; boundary=" + Boundary
}

// UsingFallback reports whether the last produced frame was the
// fallback image rather than a live capture.
func (p *Pipeline) UsingFallback() bool { return p.usingFallback.Load() }

// ClientCount returns the number of connected stream clients.
func (p *Pipeline) ClientCount() int { return int(p.clients.Load()) }

// Serve writes multipart JPEG frames to w until ctx is done or the
// client goes away. Frame reads happen outside any long-held lock, so
// settings updates and device switches interleave cleanly with
// streaming.
func (p *Pipeline) Serve(ctx context.Context, w io.Writer) error {
	p.clients.Add(1)
	metrics.StreamClients.Inc()
	defer func() {
		p.clients.Add(-1)
		metrics.StreamClients.Dec()
	}()

	flusher, _ := w.(http.Flusher)
	next := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := p.source.ReadFrame()
		if err != nil {
			p.setFallback(true)
			metrics.StreamFrames.WithLabelValues("fallback").Inc()
			if err := writeChunk(w, p.fallback); err != nil {
				return nil // client disconnected
			}
			if flusher != nil {
				flusher.Flush()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.reconnectDelay):
			}
			if err := p.source.Reopen(); err != nil {
				p.log.Debug("Device reopen failed", "error", err)
			}
			next = time.Now()
			continue
		}

		p.setFallback(false)
		metrics.StreamFrames.WithLabelValues("live").Inc()
		if err := writeChunk(w, frame.JPEG); err != nil {
			return nil
		}
		if flusher != nil {
			flusher.Flush()
		}

		// Pace to the configured frame rate; hardware that already
		// delivers at the right cadence makes this wait a no-op.
		if fps := p.source.Settings().FPS; fps > 0 {
			next = next.Add(time.Second / time.Duration(fps))
			if wait := time.Until(next); wait > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(wait):
				}
			} else {
				next = time.Now()
			}
		}
	}
}

// Still returns one live frame, falling back to the placeholder when
// the camera cannot deliver.
func (p *Pipeline) Still() ([]byte, error) {
	frame, err := p.source.ReadFrame()
	if err != nil {
		return p.fallback, err
	}
	return frame.JPEG, nil
}

func (p *Pipeline) setFallback(active bool) {
	if p.usingFallback.Swap(active) == active {
		return
	}
	if active {
		p.log.Warn("Stream degraded to fallback image")
	} else {
		p.log.Info("Stream recovered, serving live frames")
	}
	if p.bus != nil {
		p.bus.Publish(events.StreamFallbackEvent{
			UsingFallback: active,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func writeChunk(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", Boundary); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
