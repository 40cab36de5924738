package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/camkit/camnode/internal/ffmpeg"
	"github.com/camkit/camnode/internal/process"
)

// connectRetryDelay spaces out stream reconnect attempts.
const connectRetryDelay = 2 * time.Second

// finalizeTimeout bounds how long a stopping recording may spend
// flushing its container before the subprocess is forced down.
const finalizeTimeout = 10 * time.Second

// frameWriter records by reading the MJPEG stream endpoint and piping
// paced JPEG frames into ffmpeg's stdin. ffmpeg is started lazily on
// the first received frame, and the stream connection is retried
// until the session is stopped, so a recording started against a dark
// camera begins the moment frames appear.
type frameWriter struct {
	streamURL string
	command   string
	fps       int
	log       *slog.Logger
	procLog   *slog.Logger
}

func (fw *frameWriter) name() string { return "frame-writer" }

func (fw *frameWriter) run(ctx context.Context) error {
	frames := make(chan []byte, 1)
	go fw.readLoop(ctx, frames)

	var last []byte
	select {
	case <-ctx.Done():
		return nil
	case last = <-frames:
	}

	pr, pw := io.Pipe()
	proc := process.NewProcess("record", fw.command, fw.log)
	proc.SetLogParser(fw.procLog, ffmpeg.ParseLogLevel)
	proc.SetStdin(pr)

	procDone := make(chan int, 1)
	go func() { procDone <- proc.Run() }()

	fps := fw.fps
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	if _, err := pw.Write(last); err != nil {
		proc.Shutdown()
		<-procDone
		return fmt.Errorf("write first frame: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			// EOF on stdin lets ffmpeg finalize the container.
			pw.Close()
			select {
			case <-procDone:
			case <-time.After(finalizeTimeout):
				fw.log.Warn("Recording finalize timed out, forcing shutdown")
				proc.Shutdown()
				<-procDone
			}
			return nil

		case frame := <-frames:
			last = frame

		case exitCode := <-procDone:
			pw.Close()
			return fmt.Errorf("encoder exited with code %d while recording", exitCode)

		case <-ticker.C:
			// The last frame is repeated when the camera runs slower
			// than the recording rate; wall-clock time stays correct.
			if _, err := pw.Write(last); err != nil {
				proc.Shutdown()
				<-procDone
				return fmt.Errorf("write frame: %w", err)
			}
		}
	}
}

// readLoop keeps the stream connection alive and publishes the newest
// frame into the single-slot channel.
func (fw *frameWriter) readLoop(ctx context.Context, frames chan []byte) {
	for ctx.Err() == nil {
		client, err := dialMJPEG(ctx, fw.streamURL)
		if err != nil {
			fw.log.Debug("Stream connect failed, retrying", "url", fw.streamURL, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(connectRetryDelay):
			}
			continue
		}

		for {
			frame, err := client.nextFrame()
			if err != nil {
				client.close()
				break
			}
			latest := append([]byte(nil), frame...)
			select {
			case frames <- latest:
			default:
				// Replace the stale frame in the slot.
				select {
				case <-frames:
				default:
				}
				frames <- latest
			}
		}
	}
}
