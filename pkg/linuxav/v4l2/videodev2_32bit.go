//go:build linux && (arm || 386)

package v4l2

import "unsafe"

// Kernel ABI structs for the 32-bit layout of <linux/videodev2.h>.
// The format union is 4-byte aligned here, which changes the struct
// size and therefore the G_FMT/S_FMT request numbers.

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

type v4l2Format struct {
	typ uint32
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
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Control{})]byte{}
)

const (
	vidiocQuerycap uint = 0x80685600 // _IOR('V', 0, v4l2_capability)
	vidiocGFmt     uint = 0xc0cc5604 // _IOWR('V', 4, v4l2_format)
	vidiocSFmt     uint = 0xc0cc5605 // _IOWR('V', 5, v4l2_format)
	vidiocGCtrl    uint = 0xc008561b // _IOWR('V', 27, v4l2_control)
	vidiocSCtrl    uint = 0xc008561c // _IOWR('V', 28, v4l2_control)
)
