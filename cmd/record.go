package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camkit/camnode/internal/recorder"
)

// CreateRecordCmd records a running node's stream to a file from the
// command line, without going through the HTTP API.
func CreateRecordCmd() *cobra.Command {
	var (
		streamURL string
		audioURL  string
		output    string
		strategy  string
		duration  time.Duration
		fps       int
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a stream to a file",
		Long:  "Connect to a node's MJPEG endpoint and record it until interrupted or the duration elapses.",
		Run: func(_ *cobra.Command, _ []string) {
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			engine := recorder.NewEngine(log, log, recorder.Options{
				OutputDir: ".",
				StreamURL: streamURL,
				AudioURL:  audioURL,
				Strategy:  strategy,
				FPS:       func() int { return fps },
			})

			path, err := engine.Start(output)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to start recording: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Recording to %s (Ctrl-C to stop)\n", path)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			if duration > 0 {
				select {
				case <-sigCh:
				case <-time.After(duration):
				}
			} else {
				<-sigCh
			}

			final, err := engine.Stop()
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to stop recording: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Saved %s\n", final)
		},
	}

	cmd.Flags().StringVar(&streamURL, "stream-url", "http://127.0.0.1:8090/api/stream", "MJPEG stream endpoint")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "AAC audio endpoint for the mux strategy")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output filename (timestamped when empty)")
	cmd.Flags().StringVar(&strategy, "strategy", recorder.StrategyFrameWriter, "Recording strategy: frame-writer or mux")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop automatically after this long (0 = until interrupted)")
	cmd.Flags().IntVar(&fps, "fps", 30, "Frame rate for output pacing")

	return cmd
}
