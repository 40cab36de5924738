//go:build linux

package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/camkit/camnode/pkg/linuxav/v4l2"
)

// NewBackend returns the V4L2 capture backend.
func NewBackend() Backend {
	return &v4l2Backend{}
}

type v4l2Backend struct{}

func (b *v4l2Backend) Name() string { return "v4l2" }

func (b *v4l2Backend) Open(path string, width, height, fps int) (Handle, error) {
	dev, err := v4l2.Open(path, uint32(width), uint32(height))
	if err != nil {
		return nil, err
	}
	return &v4l2Handle{
		dev: dev,
		buf: make([]byte, dev.Format().SizeImage),
	}, nil
}

type v4l2Handle struct {
	dev    *v4l2.Device
	buf    []byte
	closed bool
}

var propToControl = map[Property]uint32{
	PropBrightness: v4l2.CtrlBrightness,
	PropContrast:   v4l2.CtrlContrast,
	PropSaturation: v4l2.CtrlSaturation,
	PropHue:        v4l2.CtrlHue,
	PropGain:       v4l2.CtrlGain,
	PropExposure:   v4l2.CtrlExposure,
}

func (h *v4l2Handle) Set(prop Property, value int) bool {
	// Geometry and frame rate are fixed at open time with this
	// backend; the session reopens the device to change them.
	id, ok := propToControl[prop]
	if !ok {
		return false
	}
	return h.dev.SetControl(id, int32(value)) == nil
}

func (h *v4l2Handle) ReadFrame() (Frame, error) {
	n, err := h.dev.ReadFrame(h.buf)
	if err != nil {
		return Frame{}, err
	}

	format := h.dev.Format()
	frame := Frame{
		Width:    int(format.Width),
		Height:   int(format.Height),
		Captured: time.Now(),
	}

	if format.IsMJPEG() {
		frame.JPEG = append([]byte(nil), h.buf[:n]...)
		return frame, nil
	}

	data, err := yuyvToJPEG(h.buf[:n], int(format.Width), int(format.Height))
	if err != nil {
		return Frame{}, err
	}
	frame.JPEG = data
	return frame, nil
}

func (h *v4l2Handle) IsOpened() bool { return !h.closed }

func (h *v4l2Handle) Close() error {
	h.closed = true
	return h.dev.Close()
}

// yuyvToJPEG converts a packed YUYV 4:2:2 frame to JPEG. Each four
// bytes carry two pixels: Y0 U Y1 V.
func yuyvToJPEG(raw []byte, width, height int) ([]byte, error) {
	if len(raw) < width*height*2 {
		return nil, fmt.Errorf("short YUYV frame: %d bytes for %dx%d", len(raw), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := raw[y*width*2:]
		for x := 0; x < width; x += 2 {
			i := x * 2
			yOff := y*img.YStride + x
			cOff := y*img.CStride + x/2
			img.Y[yOff] = row[i]
			img.Y[yOff+1] = row[i+2]
			img.Cb[cOff] = row[i+1]
			img.Cr[cOff] = row[i+3]
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
