// Package devices maintains the registry of attached video and audio
// sources. Probing hardware is slow, so results are cached with a TTL
// and replaced as a whole snapshot; readers never see a half-refreshed
// device list.
package devices

import "time"

// VideoDevice describes one enumerated capture node.
type VideoDevice struct {
	Index int    `json:"index" toml:"index" example:"0" doc:"Position in the registry, used by switch operations"`
	Path  string `json:"path" toml:"path" example:"/dev/video0" doc:"Device node path"`
	Name  string `json:"name" toml:"name" example:"HD Pro Webcam C920" doc:"Driver-reported card name"`
	ID    string `json:"id" toml:"id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable identifier when the platform provides one"`
}

// Audio source kinds.
const (
	AudioKindDefault = "default"
	AudioKindALSA    = "alsa"
	AudioKindPulse   = "pulse"
)

// AudioDevice describes one capturable audio source.
type AudioDevice struct {
	Index  int    `json:"index" toml:"index" example:"0" doc:"Position in the registry, used by switch operations"`
	Name   string `json:"name" toml:"name" example:"USB Audio Device" doc:"Human-readable source name"`
	Source string `json:"source" toml:"source" example:"hw:1,0" doc:"Backend-specific capture address"`
	Kind   string `json:"kind" toml:"kind" example:"alsa" doc:"Backend that owns the source: default, alsa or pulse"`
}

// Snapshot is one consistent view of everything the last probe found.
type Snapshot struct {
	Video       []VideoDevice `json:"video" toml:"video"`
	Audio       []AudioDevice `json:"audio" toml:"audio"`
	RefreshedAt time.Time     `json:"refreshed_at" toml:"refreshed_at"`
}

// VideoByIndex returns the video device at index, or false when the
// index is out of range.
func (s Snapshot) VideoByIndex(idx int) (VideoDevice, bool) {
	if idx < 0 || idx >= len(s.Video) {
		return VideoDevice{}, false
	}
	return s.Video[idx], true
}

// AudioByIndex returns the audio device at index, or false when the
// index is out of range.
func (s Snapshot) AudioByIndex(idx int) (AudioDevice, bool) {
	if idx < 0 || idx >= len(s.Audio) {
		return AudioDevice{}, false
	}
	return s.Audio[idx], true
}

// Prober enumerates the platform's devices. Implementations live in
// the platform-specific files; tests substitute their own.
type Prober interface {
	ProbeVideo() ([]VideoDevice, error)
	ProbeAudio() ([]AudioDevice, error)
}

// ProbeConfig lists explicitly configured sources. Configured entries
// are probed ahead of system enumeration and keep the lowest indices,
// so saved index selections stay stable across replugs.
type ProbeConfig struct {
	VideoSources []string
	AudioSources []string
}
