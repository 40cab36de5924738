//go:build !linux

package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"time"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // register camera driver
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
)

// NewBackend returns the mediadevices capture backend used on
// platforms without V4L2.
func NewBackend() Backend {
	return &mdBackend{}
}

type mdBackend struct{}

func (b *mdBackend) Name() string { return "mediadevices" }

func (b *mdBackend) Open(path string, width, height, fps int) (Handle, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(width)
			c.Height = prop.Int(height)
			c.FrameRate = prop.Float(float64(fps))
			if path != "" {
				c.DeviceID = prop.String(path)
			}
		},
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		// Retry with only the device pinned; strict geometry
		// constraints fail on cameras with a short mode list.
		constraints = mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				if path != "" {
					c.DeviceID = prop.String(path)
				}
			},
		}
		stream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			return nil, fmt.Errorf("get user media: %w", err)
		}
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no video track for device %q", path)
	}
	track, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		tracks[0].Close()
		return nil, fmt.Errorf("unexpected track type for device %q", path)
	}

	return &mdHandle{
		track:  track,
		reader: track.NewReader(false),
	}, nil
}

type mdHandle struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
	closed bool
}

func (h *mdHandle) Set(prop Property, value int) bool {
	// mediadevices fixes constraints at open time; the session
	// reopens the track for any change.
	return false
}

func (h *mdHandle) ReadFrame() (Frame, error) {
	img, release, err := h.reader.Read()
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	defer release()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}

	bounds := img.Bounds()
	return Frame{
		JPEG:     buf.Bytes(),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Captured: time.Now(),
	}, nil
}

func (h *mdHandle) IsOpened() bool { return !h.closed }

func (h *mdHandle) Close() error {
	h.closed = true
	return h.track.Close()
}
