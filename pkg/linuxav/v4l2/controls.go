//go:build linux

package v4l2

import (
	"fmt"
	"unsafe"
)

// User-class control IDs from <linux/v4l2-controls.h>.
const (
	ctrlClassUserBase uint32 = 0x00980900

	CtrlBrightness = ctrlClassUserBase + 0
	CtrlContrast   = ctrlClassUserBase + 1
	CtrlSaturation = ctrlClassUserBase + 2
	CtrlHue        = ctrlClassUserBase + 3
	CtrlExposure   = ctrlClassUserBase + 17
	CtrlGain       = ctrlClassUserBase + 19
)

// SetControl writes a user control value. Drivers reject controls they
// do not expose with EINVAL, which callers may treat as non-fatal.
func (d *Device) SetControl(id uint32, value int32) error {
	ctrl := v4l2Control{id: id, value: value}
	if err := ioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return fmt.Errorf("set control 0x%08x: %w", id, err)
	}
	return nil
}

// GetControl reads back a user control value.
func (d *Device) GetControl(id uint32) (int32, error) {
	ctrl := v4l2Control{id: id}
	if err := ioctl(d.fd, vidiocGCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return 0, fmt.Errorf("get control 0x%08x: %w", id, err)
	}
	return ctrl.value, nil
}
