package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/camkit/camnode/internal/devices"
)

// CreateDevicesCmd lists every video and audio source the node can
// find, without starting the server.
func CreateDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  "Probe the system for video and audio sources and print what was found.",
		Run: func(_ *cobra.Command, _ []string) {
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			prober := devices.NewProber(log, devices.ProbeConfig{})

			video, err := prober.ProbeVideo()
			if err != nil {
				fmt.Fprintf(os.Stderr, "video probe failed: %v\n", err)
			}
			audio, err := prober.ProbeAudio()
			if err != nil {
				fmt.Fprintf(os.Stderr, "audio probe failed: %v\n", err)
			}

			fmt.Printf("Video sources (%d):\n", len(video))
			for _, dev := range video {
				fmt.Printf("  [%d] %s  %s", dev.Index, dev.Path, dev.Name)
				if dev.ID != "" {
					fmt.Printf("  (%s)", dev.ID)
				}
				fmt.Println()
			}

			fmt.Printf("Audio sources (%d):\n", len(audio))
			for _, dev := range audio {
				fmt.Printf("  [%d] %-8s %s  %s\n", dev.Index, dev.Kind, dev.Source, dev.Name)
			}
		},
	}
}
