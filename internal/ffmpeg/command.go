// Package ffmpeg builds the ffmpeg command lines used by the audio
// relay and the recording engine, and parses ffmpeg log output.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// base returns the ffmpeg invocation prefix shared by every command.
// level+info prefixes each output line with its level so the process
// log parser can map it onto structured logging.
func base() string {
	return "ffmpeg -hide_banner -loglevel level+info"
}

// AudioRelayCommand builds the command that captures an audio source
// and emits an AAC/ADTS byte stream on stdout.
func AudioRelayCommand(kind, source string, bitrate string) string {
	if bitrate == "" {
		bitrate = "128k"
	}
	input := "-f alsa"
	switch kind {
	case "pulse":
		input = "-f pulse"
	case "default":
		// ALSA's default device routes through Pulse when present.
		input = "-f alsa"
	}
	return fmt.Sprintf("%s %s -i %s -c:a aac -b:a %s -f adts -", base(), input, source, bitrate)
}

// FrameWriterCommand builds the command that encodes JPEG frames
// arriving on stdin into a video file. The input is paced by the
// writer, so the frame rate is declared rather than measured.
func FrameWriterCommand(fps int, codec, output string) string {
	if fps <= 0 {
		fps = 30
	}
	return fmt.Sprintf("%s -y -f mjpeg -framerate %d -i - -c:v %s -pix_fmt yuv420p %s",
		base(), fps, codec, quote(output))
}

// MuxCommand builds the command that records video and audio together
// by reading both from the service's own HTTP endpoints. The audio leg
// is already AAC, so it is copied rather than re-encoded.
func MuxCommand(videoURL, audioURL, codec, output string) string {
	return fmt.Sprintf("%s -i %s -i %s -c:v %s -pix_fmt yuv420p -c:a copy %s",
		base(), quote(videoURL), quote(audioURL), codec, quote(output))
}

// quote wraps an argument in double quotes when it contains spaces.
func quote(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// ProbeEncoder reports whether the local ffmpeg build offers the named
// encoder. The result is what recording codec selection falls back on.
func ProbeEncoder(codec string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == codec {
			return true
		}
	}
	return false
}
