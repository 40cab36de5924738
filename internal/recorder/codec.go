package recorder

import (
	"path/filepath"
	"strings"
)

// fallbackCodec works in every ffmpeg build.
const fallbackCodec = "mpeg4"

// codecCandidates maps an output extension to its encoder preference
// order. The first probed-working candidate wins; mpeg4 is the final
// fallback for everything.
func codecCandidates(output string) []string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4":
		return []string{"libx264", fallbackCodec}
	case ".webm":
		return []string{"libvpx"}
	default:
		return []string{fallbackCodec}
	}
}

// selectCodec picks the first candidate the probe accepts. When none
// probe successfully the fallback is returned anyway and ffmpeg gets
// the last word.
func selectCodec(output string, probe func(codec string) bool) string {
	candidates := codecCandidates(output)
	for _, codec := range candidates {
		if probe(codec) {
			return codec
		}
	}
	return fallbackCodec
}
