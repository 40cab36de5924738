//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrReadIOUnsupported is returned by Open when the driver does not
// implement read() I/O on the capture node.
var ErrReadIOUnsupported = errors.New("v4l2: device does not support read I/O")

// Device is an open capture node with a negotiated format. Methods are
// not safe for concurrent use; callers serialize access.
type Device struct {
	fd     int
	path   string
	format Format

	mu     sync.Mutex
	closed bool
}

// Open opens a capture node and negotiates a frame format. MJPEG is
// preferred at the requested size; drivers without a JPEG encoder fall
// back to YUYV. The driver may adjust width and height, so callers
// read the effective values from Format.
func Open(path string, width, height uint32) (*Device, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	if !info.Capture {
		return nil, fmt.Errorf("v4l2: %s is not a capture device", path)
	}
	if !info.ReadWrite {
		return nil, fmt.Errorf("%w: %s", ErrReadIOUnsupported, path)
	}

	fd, err := openDevice(path)
	if err != nil {
		return nil, err
	}

	d := &Device{fd: fd, path: path}
	if err := d.setFormat(width, height, PixFmtMJPG); err != nil {
		if err := d.setFormat(width, height, PixFmtYUYV); err != nil {
			closeDevice(fd)
			return nil, fmt.Errorf("negotiate format on %s: %w", path, err)
		}
	}
	return d, nil
}

// Path returns the device node this handle captures from.
func (d *Device) Path() string { return d.path }

// Format returns the negotiated capture format.
func (d *Device) Format() Format { return d.format }

func (d *Device) setFormat(width, height, pixelFormat uint32) error {
	var fmtReq v4l2Format
	fmtReq.typ = bufTypeVideoCapture
	fmtReq.pix.width = width
	fmtReq.pix.height = height
	fmtReq.pix.pixelFormat = pixelFormat
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&fmtReq)); err != nil {
		return err
	}
	// S_FMT never fails for an unsupported fourcc; the driver silently
	// substitutes one, so verify what actually took effect.
	if fmtReq.pix.pixelFormat != pixelFormat {
		return fmt.Errorf("driver substituted format 0x%08x", fmtReq.pix.pixelFormat)
	}
	d.format = Format{
		Width:       fmtReq.pix.width,
		Height:      fmtReq.pix.height,
		PixelFormat: fmtReq.pix.pixelFormat,
		SizeImage:   fmtReq.pix.sizeImage,
	}
	return nil
}

// ReadFrame reads one frame into buf and returns the bytes filled.
// buf must be at least Format().SizeImage bytes. The call blocks until
// the driver has a complete frame.
func (d *Device) ReadFrame(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errors.New("v4l2: device closed")
	}
	for {
		n, err := unix.Read(d.fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read frame from %s: %w", d.path, err)
		}
		return n, nil
	}
}

// Close releases the device node. Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return closeDevice(d.fd)
}
