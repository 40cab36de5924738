//go:build linux

package v4l2

import "testing"

func TestCstr(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"terminated", []byte{'U', 'V', 'C', 0, 'x', 'x'}, "UVC"},
		{"unterminated", []byte{'c', 'a', 'm'}, "cam"},
		{"empty", []byte{0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cstr(tt.in); got != tt.want {
				t.Errorf("cstr(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatIsMJPEG(t *testing.T) {
	if !(Format{PixelFormat: PixFmtMJPG}).IsMJPEG() {
		t.Error("MJPG format not detected as MJPEG")
	}
	if (Format{PixelFormat: PixFmtYUYV}).IsMJPEG() {
		t.Error("YUYV format detected as MJPEG")
	}
}
