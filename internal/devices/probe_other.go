//go:build !linux

package devices

import (
	"log/slog"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // register camera driver
)

// NewProber returns the portable prober backed by mediadevices. Audio
// enumeration is Linux-only; other platforms expose just the synthetic
// default source plus any configured addresses.
func NewProber(log *slog.Logger, cfg ProbeConfig) Prober {
	return &mdProber{log: log.With("component", "devices"), cfg: cfg}
}

type mdProber struct {
	log *slog.Logger
	cfg ProbeConfig
}

func (p *mdProber) ProbeVideo() ([]VideoDevice, error) {
	var out []VideoDevice
	seen := make(map[string]bool)
	for _, src := range p.cfg.VideoSources {
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, VideoDevice{
			Index: len(out),
			Path:  src,
			Name:  src,
			ID:    src,
		})
	}
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind != mediadevices.VideoInput || seen[info.DeviceID] {
			continue
		}
		seen[info.DeviceID] = true
		out = append(out, VideoDevice{
			Index: len(out),
			Path:  info.DeviceID,
			Name:  info.Label,
			ID:    info.DeviceID,
		})
	}
	return out, nil
}

func (p *mdProber) ProbeAudio() ([]AudioDevice, error) {
	return assembleAudio(configuredAudio(p.cfg.AudioSources)), nil
}
