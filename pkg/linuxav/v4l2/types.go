package v4l2

// Pixel format FourCC codes (little endian, as the kernel defines them).
const (
	PixFmtYUYV uint32 = 0x56595559 // 'YUYV' packed 4:2:2
	PixFmtMJPG uint32 = 0x47504A4D // 'MJPG' motion JPEG
)

// Capability flags from v4l2_capability.device_caps.
const (
	capVideoCapture = 0x00000001
	capReadWrite    = 0x01000000
	capStreaming    = 0x04000000
	capDeviceCaps   = 0x80000000
)

// Buffer type for the single-planar capture API.
const bufTypeVideoCapture = 1

// DeviceInfo describes an enumerated capture node.
type DeviceInfo struct {
	// Path is the device node, e.g. /dev/video0.
	Path string
	// Name is the card name reported by the driver.
	Name string
	// ID is a stable identifier derived from /dev/v4l/by-id when
	// available, otherwise the node basename.
	ID string
	// Capture reports whether the node supports video capture.
	Capture bool
	// ReadWrite reports whether the node supports read() I/O.
	ReadWrite bool
}

// Format is the negotiated capture format of an open device.
type Format struct {
	Width       uint32
	Height      uint32
	PixelFormat uint32
	SizeImage   uint32
}

// IsMJPEG reports whether frames are already JPEG-compressed.
func (f Format) IsMJPEG() bool { return f.PixelFormat == PixFmtMJPG }
