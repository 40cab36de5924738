// Package capture owns the live camera session: one open device handle
// at a time, guarded by a capture mutex so frame reads never interleave
// with reconfiguration or device switches.
package capture

import (
	"fmt"
	"time"
)

// jpegQuality is used when a backend has to encode raw frames itself.
const jpegQuality = 85

// Property identifies an adjustable camera parameter.
type Property int

const (
	PropWidth Property = iota
	PropHeight
	PropFPS
	PropBrightness
	PropContrast
	PropSaturation
	PropHue
	PropGain
	PropExposure
)

var propNames = map[Property]string{
	PropWidth:      "width",
	PropHeight:     "height",
	PropFPS:        "fps",
	PropBrightness: "brightness",
	PropContrast:   "contrast",
	PropSaturation: "saturation",
	PropHue:        "hue",
	PropGain:       "gain",
	PropExposure:   "exposure",
}

func (p Property) String() string {
	if name, ok := propNames[p]; ok {
		return name
	}
	return "unknown"
}

// Frame is a single captured image, always JPEG-encoded.
type Frame struct {
	JPEG     []byte
	Width    int
	Height   int
	Captured time.Time
}

// Settings describes the desired camera configuration. Geometry fields
// are always meaningful; image controls are optional and skipped when
// nil, so a partial update touches only what it names.
type Settings struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
	FPS    int `json:"fps" toml:"fps"`

	Brightness *int `json:"brightness,omitempty" toml:"brightness,omitempty"`
	Contrast   *int `json:"contrast,omitempty" toml:"contrast,omitempty"`
	Saturation *int `json:"saturation,omitempty" toml:"saturation,omitempty"`
	Hue        *int `json:"hue,omitempty" toml:"hue,omitempty"`
	Gain       *int `json:"gain,omitempty" toml:"gain,omitempty"`
	Exposure   *int `json:"exposure,omitempty" toml:"exposure,omitempty"`
}

// DefaultSettings is the configuration used before any client tunes
// the camera.
func DefaultSettings() Settings {
	return Settings{Width: 1280, Height: 720, FPS: 30}
}

type control struct {
	prop  Property
	value int
}

// controls returns the optional image controls that are set, in a
// stable order.
func (s Settings) controls() []control {
	var out []control
	add := func(p Property, v *int) {
		if v != nil {
			out = append(out, control{p, *v})
		}
	}
	add(PropBrightness, s.Brightness)
	add(PropContrast, s.Contrast)
	add(PropSaturation, s.Saturation)
	add(PropHue, s.Hue)
	add(PropGain, s.Gain)
	add(PropExposure, s.Exposure)
	return out
}

// Property returns the value of the named property. Optional controls
// that are unset report false.
func (s Settings) Property(name string) (int, bool) {
	switch name {
	case "width":
		return s.Width, true
	case "height":
		return s.Height, true
	case "fps":
		return s.FPS, true
	}
	for _, c := range s.controls() {
		if c.prop.String() == name {
			return c.value, true
		}
	}
	return 0, false
}

// SetProperty assigns the named property. Unknown names are an error.
func (s *Settings) SetProperty(name string, value int) error {
	switch name {
	case "width":
		s.Width = value
	case "height":
		s.Height = value
	case "fps":
		s.FPS = value
	case "brightness":
		s.Brightness = &value
	case "contrast":
		s.Contrast = &value
	case "saturation":
		s.Saturation = &value
	case "hue":
		s.Hue = &value
	case "gain":
		s.Gain = &value
	case "exposure":
		s.Exposure = &value
	default:
		return fmt.Errorf("unknown camera property %q", name)
	}
	return nil
}

// Controls returns the optional image controls that are set, keyed by
// property name. Geometry fields are excluded.
func (s Settings) Controls() map[string]int {
	out := make(map[string]int)
	for _, c := range s.controls() {
		out[c.prop.String()] = c.value
	}
	return out
}

// Handle is an open capture device. Implementations are not required
// to be concurrency-safe; the session serializes all access.
type Handle interface {
	// Set applies a single property and reports whether the device
	// accepted it. Unsupported properties return false without error.
	Set(prop Property, value int) bool
	// ReadFrame blocks until the next frame is available.
	ReadFrame() (Frame, error)
	// IsOpened reports whether the handle can still produce frames.
	IsOpened() bool
	Close() error
}

// Backend opens capture devices for a particular platform API.
type Backend interface {
	Name() string
	Open(path string, width, height, fps int) (Handle, error)
}
