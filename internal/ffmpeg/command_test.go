package ffmpeg

import (
	"strings"
	"testing"
)

func TestAudioRelayCommand(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		source string
		want   []string
	}{
		{"alsa", "alsa", "hw:1,0", []string{"-f alsa", "-i hw:1,0", "-c:a aac", "-f adts -"}},
		{"pulse", "pulse", "alsa_input.usb", []string{"-f pulse", "-i alsa_input.usb"}},
		{"default", "default", "default", []string{"-f alsa", "-i default"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := AudioRelayCommand(tt.kind, tt.source, "")
			for _, part := range tt.want {
				if !strings.Contains(cmd, part) {
					t.Errorf("command %q missing %q", cmd, part)
				}
			}
			if !strings.Contains(cmd, "-b:a 128k") {
				t.Errorf("command %q missing default bitrate", cmd)
			}
		})
	}
}

func TestFrameWriterCommand(t *testing.T) {
	cmd := FrameWriterCommand(15, "libx264", "/tmp/out.mp4")
	for _, part := range []string{"-f mjpeg", "-framerate 15", "-i -", "-c:v libx264", "/tmp/out.mp4"} {
		if !strings.Contains(cmd, part) {
			t.Errorf("command %q missing %q", cmd, part)
		}
	}

	// Zero fps falls back to a sane default.
	if cmd := FrameWriterCommand(0, "mpeg4", "out.avi"); !strings.Contains(cmd, "-framerate 30") {
		t.Errorf("command %q missing fallback framerate", cmd)
	}
}

func TestMuxCommand(t *testing.T) {
	cmd := MuxCommand("http://127.0.0.1:8000/stream", "http://127.0.0.1:8000/stream/audio", "libx264", "/tmp/rec.mp4")
	if !strings.Contains(cmd, "-i http://127.0.0.1:8000/stream ") {
		t.Errorf("command %q missing video input", cmd)
	}
	if !strings.Contains(cmd, "-c:a copy") {
		t.Errorf("command %q should copy the AAC audio leg", cmd)
	}
}

func TestQuote(t *testing.T) {
	if got := quote("/media/My Videos/out.mp4"); got != `"/media/My Videos/out.mp4"` {
		t.Errorf("quote = %q", got)
	}
	if got := quote("/tmp/out.mp4"); got != "/tmp/out.mp4" {
		t.Errorf("quote = %q, want unquoted", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Input #0, mjpeg", "info", "Input #0, mjpeg"},
		{"[error] Connection refused", "error", "Connection refused"},
		{"[mjpeg @ 0x5581] [warning] overread 8", "warning", "[mjpeg @ 0x5581] overread 8"},
		{"plain text", "info", "plain text"},
		{"[not-a-level] something", "info", "[not-a-level] something"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)",
				tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
