//go:build linux

package devices

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/camkit/camnode/pkg/linuxav/v4l2"
)

// maxScanIndex bounds the fallback node scan when sysfs enumeration is
// unavailable, e.g. inside a minimal container.
const maxScanIndex = 9

const probeCommandTimeout = 5 * time.Second

// NewProber returns the Linux prober: V4L2 for video, arecord and
// pactl for audio.
func NewProber(log *slog.Logger, cfg ProbeConfig) Prober {
	return &linuxProber{
		log:         log.With("component", "devices"),
		cfg:         cfg,
		run:         runCommand,
		probe:       v4l2.Probe,
		findDevices: v4l2.FindDevices,
	}
}

type linuxProber struct {
	log *slog.Logger
	cfg ProbeConfig
	run func(name string, args ...string) (string, error)

	// v4l2 hooks, swappable in tests.
	probe       func(path string) (v4l2.DeviceInfo, error)
	findDevices func() ([]v4l2.DeviceInfo, error)
}

func (p *linuxProber) ProbeVideo() ([]VideoDevice, error) {
	var infos []v4l2.DeviceInfo
	seen := make(map[string]bool)

	// Configured paths come first so their indices stay stable no
	// matter what enumeration order the system reports.
	for _, path := range p.cfg.VideoSources {
		info, err := p.probe(path)
		if err != nil {
			p.log.Warn("Configured video source unavailable", "path", path, "error", err)
			continue
		}
		if seen[info.Path] {
			continue
		}
		seen[info.Path] = true
		infos = append(infos, info)
	}

	found, err := p.findDevices()
	if err != nil {
		if len(infos) == 0 {
			return nil, err
		}
		p.log.Warn("System video enumeration failed, using configured sources only", "error", err)
		found = nil
	}
	if len(found) == 0 && len(infos) == 0 {
		found = p.scanNodes()
	}
	for _, info := range found {
		if seen[info.Path] {
			continue
		}
		seen[info.Path] = true
		infos = append(infos, info)
	}

	out := make([]VideoDevice, 0, len(infos))
	for _, info := range infos {
		out = append(out, VideoDevice{
			Index: len(out),
			Path:  info.Path,
			Name:  info.Name,
			ID:    info.ID,
		})
	}
	return out, nil
}

// scanNodes probes /dev/video0..9 directly.
func (p *linuxProber) scanNodes() []v4l2.DeviceInfo {
	var out []v4l2.DeviceInfo
	for i := 0; i <= maxScanIndex; i++ {
		info, err := p.probe(fmt.Sprintf("/dev/video%d", i))
		if err != nil || !info.Capture {
			continue
		}
		out = append(out, info)
	}
	return out
}

func (p *linuxProber) ProbeAudio() ([]AudioDevice, error) {
	var alsa, pulse []AudioDevice

	if out, err := p.run("arecord", "-l"); err != nil {
		p.log.Debug("arecord enumeration failed", "error", err)
	} else {
		alsa = parseArecordList(out)
	}

	if out, err := p.run("pactl", "list", "short", "sources"); err != nil {
		p.log.Debug("pactl enumeration failed", "error", err)
	} else {
		pulse = parsePactlSources(out)
	}

	return assembleAudio(configuredAudio(p.cfg.AudioSources), alsa, pulse), nil
}

func runCommand(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeCommandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}
