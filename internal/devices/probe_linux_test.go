//go:build linux

package devices

import (
	"errors"
	"testing"

	"github.com/camkit/camnode/pkg/linuxav/v4l2"
)

func TestProbeVideoConfiguredSourcesFirst(t *testing.T) {
	p := &linuxProber{
		log: testLogger(),
		cfg: ProbeConfig{VideoSources: []string{"/dev/video4", "/dev/missing"}},
		probe: func(path string) (v4l2.DeviceInfo, error) {
			if path == "/dev/missing" {
				return v4l2.DeviceInfo{}, errors.New("no such device")
			}
			return v4l2.DeviceInfo{Path: path, Name: "Configured Cam", Capture: true}, nil
		},
		findDevices: func() ([]v4l2.DeviceInfo, error) {
			return []v4l2.DeviceInfo{
				{Path: "/dev/video0", Name: "Built-in", Capture: true},
				{Path: "/dev/video4", Name: "Configured Cam", Capture: true},
			}, nil
		},
	}

	got, err := p.ProbeVideo()
	if err != nil {
		t.Fatalf("ProbeVideo: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d devices, want 2: %+v", len(got), got)
	}
	// The configured source holds index 0 even though enumeration
	// reported it second; the unprobeable one is skipped.
	if got[0].Path != "/dev/video4" || got[0].Index != 0 {
		t.Errorf("first device = %+v, want /dev/video4 at index 0", got[0])
	}
	if got[1].Path != "/dev/video0" || got[1].Index != 1 {
		t.Errorf("second device = %+v, want /dev/video0 at index 1", got[1])
	}
}

func TestProbeVideoConfiguredSurvivesEnumerationFailure(t *testing.T) {
	p := &linuxProber{
		log: testLogger(),
		cfg: ProbeConfig{VideoSources: []string{"/dev/video4"}},
		probe: func(path string) (v4l2.DeviceInfo, error) {
			return v4l2.DeviceInfo{Path: path, Name: "Configured Cam", Capture: true}, nil
		},
		findDevices: func() ([]v4l2.DeviceInfo, error) {
			return nil, errors.New("sysfs unavailable")
		},
	}

	got, err := p.ProbeVideo()
	if err != nil {
		t.Fatalf("ProbeVideo: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/dev/video4" {
		t.Errorf("devices = %+v, want just /dev/video4", got)
	}
}

func TestConfiguredAudioKinds(t *testing.T) {
	got := configuredAudio([]string{"hw:1,0", "plughw:2,0", "default", "alsa_input.usb-cam"})
	wantKinds := []string{AudioKindALSA, AudioKindALSA, AudioKindDefault, AudioKindPulse}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d sources, want %d", len(got), len(wantKinds))
	}
	for i, dev := range got {
		if dev.Kind != wantKinds[i] {
			t.Errorf("source %q kind = %q, want %q", dev.Source, dev.Kind, wantKinds[i])
		}
	}
}

func TestConfiguredAudioOrdering(t *testing.T) {
	devs := assembleAudio(configuredAudio([]string{"hw:1,0"}), []AudioDevice{
		{Name: "USB Audio", Source: "hw:1,0", Kind: AudioKindALSA},
		{Name: "Other", Source: "hw:2,0", Kind: AudioKindALSA},
	})
	if len(devs) != 3 {
		t.Fatalf("got %d sources, want 3: %+v", len(devs), devs)
	}
	// Synthetic default first, then the configured address, then the
	// remaining enumerated hardware; the enumerated duplicate of the
	// configured address is dropped.
	if devs[1].Source != "hw:1,0" || devs[1].Index != 1 {
		t.Errorf("second source = %+v, want configured hw:1,0 at index 1", devs[1])
	}
	if devs[2].Source != "hw:2,0" {
		t.Errorf("third source = %+v, want hw:2,0", devs[2])
	}
}
