//go:build linux

package v4l2

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl issues a V4L2 ioctl, retrying on EINTR.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return fmt.Errorf("ioctl 0x%08x: %w", req, errno)
	}
}

// openDevice opens a video node for blocking I/O. Blocking mode keeps
// read() semantics simple: a frame read parks until data is available.
func openDevice(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}

// openProbe opens a node non-blocking for capability queries only.
func openProbe(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}

func closeDevice(fd int) error {
	return unix.Close(fd)
}
