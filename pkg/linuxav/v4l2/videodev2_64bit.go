//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

// Kernel ABI structs for the 64-bit layout of <linux/videodev2.h>.
// Sizes are pinned with compile-time assertions; the ioctl request
// numbers below encode these sizes, so a drifting struct fails the
// build instead of corrupting kernel memory.

type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelFormat  uint32
	field        uint32
	bytesPerLine uint32
	sizeImage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// v4l2Format embeds the pix member of the kernel's format union and
// pads to the full union width. On 64-bit the union is 8-byte aligned.
type v4l2Format struct {
	typ uint32
	_   [4]byte
	pix v4l2PixFormat
	_   [200 - unsafe.Sizeof(v4l2PixFormat{})]byte
}

type v4l2Control struct {
	id    uint32
	value int32
}

var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Control{})]byte{}
)

const (
	vidiocQuerycap uint = 0x80685600 // _IOR('V', 0, v4l2_capability)
	vidiocGFmt     uint = 0xc0d05604 // _IOWR('V', 4, v4l2_format)
	vidiocSFmt     uint = 0xc0d05605 // _IOWR('V', 5, v4l2_format)
	vidiocGCtrl    uint = 0xc008561b // _IOWR('V', 27, v4l2_control)
	vidiocSCtrl    uint = 0xc008561c // _IOWR('V', 28, v4l2_control)
)
