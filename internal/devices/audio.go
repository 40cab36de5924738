package devices

import (
	"bufio"
	"regexp"
	"strings"
)

// arecord -l card lines look like:
//
//	card 1: Device [USB Audio Device], device 0: USB Audio [USB Audio]
var arecordCardRe = regexp.MustCompile(`^card (\d+): \S+ \[([^\]]+)\], device (\d+):`)

// parseArecordList extracts ALSA capture sources from `arecord -l`
// output. Addresses use the hw:CARD,DEV form ffmpeg expects.
func parseArecordList(output string) []AudioDevice {
	var out []AudioDevice
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := arecordCardRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		out = append(out, AudioDevice{
			Name:   m[2],
			Source: "hw:" + m[1] + "," + m[3],
			Kind:   AudioKindALSA,
		})
	}
	return out
}

// parsePactlSources extracts PulseAudio sources from
// `pactl list short sources` output. Monitor sources mirror playback
// streams rather than capturing hardware, so they are skipped.
func parsePactlSources(output string) []AudioDevice {
	var out []AudioDevice
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if strings.HasSuffix(name, ".monitor") {
			continue
		}
		out = append(out, AudioDevice{
			Name:   name,
			Source: name,
			Kind:   AudioKindPulse,
		})
	}
	return out
}

// configuredAudio maps explicitly configured source addresses to
// descriptors. The owning backend is inferred from the address shape:
// hw:/plughw: addresses are ALSA, anything else is a Pulse source
// name.
func configuredAudio(sources []string) []AudioDevice {
	var out []AudioDevice
	for _, src := range sources {
		kind := AudioKindPulse
		switch {
		case src == "default":
			kind = AudioKindDefault
		case strings.HasPrefix(src, "hw:") || strings.HasPrefix(src, "plughw:"):
			kind = AudioKindALSA
		}
		out = append(out, AudioDevice{Name: src, Source: src, Kind: kind})
	}
	return out
}

// assembleAudio builds the final audio list: the synthetic default
// source first, then hardware sources with duplicates dropped.
func assembleAudio(groups ...[]AudioDevice) []AudioDevice {
	out := []AudioDevice{{
		Index:  0,
		Name:   "System default",
		Source: "default",
		Kind:   AudioKindDefault,
	}}
	seen := map[string]bool{"default": true}
	for _, group := range groups {
		for _, dev := range group {
			if seen[dev.Source] {
				continue
			}
			seen[dev.Source] = true
			dev.Index = len(out)
			out = append(out, dev)
		}
	}
	return out
}
