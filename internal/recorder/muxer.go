package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camkit/camnode/internal/ffmpeg"
	"github.com/camkit/camnode/internal/process"
)

// muxer records video and audio together with a single ffmpeg that
// reads both from the service's HTTP endpoints. ffmpeg owns all the
// pacing and interleaving; the strategy only supervises the process.
type muxer struct {
	command string
	log     *slog.Logger
	procLog *slog.Logger
}

func (m *muxer) name() string { return "mux" }

func (m *muxer) run(ctx context.Context) error {
	proc := process.NewProcess("record", m.command, m.log)
	proc.SetLogParser(m.procLog, ffmpeg.ParseLogLevel)

	procDone := make(chan int, 1)
	go func() { procDone <- proc.Run() }()

	select {
	case <-ctx.Done():
		// SIGINT lets ffmpeg write the trailer before exiting.
		proc.Shutdown()
		select {
		case <-procDone:
		case <-time.After(finalizeTimeout):
			m.log.Warn("Recording mux did not exit in time")
		}
		return nil
	case exitCode := <-procDone:
		return fmt.Errorf("mux encoder exited with code %d while recording", exitCode)
	}
}
