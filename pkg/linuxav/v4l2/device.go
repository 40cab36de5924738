//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"
)

const sysVideoClass = "/sys/class/video4linux"
const byIDDir = "/dev/v4l/by-id"

// FindDevices enumerates V4L2 capture nodes via sysfs. Nodes that
// cannot be opened or that lack video capture capability are skipped.
// Results are sorted by device path for stable ordering.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysVideoClass)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", sysVideoClass, err)
	}

	byID := stableIDs()

	var devices []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		path := "/dev/" + name
		info, err := Probe(path)
		if err != nil || !info.Capture {
			continue
		}
		if id, ok := byID[path]; ok {
			info.ID = id
		}
		devices = append(devices, info)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// Probe opens a node just long enough to query its capabilities.
func Probe(path string) (DeviceInfo, error) {
	fd, err := openProbe(path)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer closeDevice(fd)

	var caps v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&caps)); err != nil {
		return DeviceInfo{}, fmt.Errorf("querycap %s: %w", path, err)
	}

	// Prefer device_caps when the driver fills it; capabilities then
	// describes the whole card, not this node.
	effective := caps.capabilities
	if caps.capabilities&capDeviceCaps != 0 {
		effective = caps.deviceCaps
	}

	return DeviceInfo{
		Path:      path,
		Name:      cstr(caps.card[:]),
		ID:        filepath.Base(path),
		Capture:   effective&capVideoCapture != 0,
		ReadWrite: effective&capReadWrite != 0,
	}, nil
}

// stableIDs maps device paths to their persistent /dev/v4l/by-id names.
func stableIDs() map[string]string {
	out := map[string]string{}
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return out
	}
	for _, entry := range entries {
		link := filepath.Join(byIDDir, entry.Name())
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		// First symlink wins; by-id entries are already ordered.
		if _, ok := out[target]; !ok {
			out[target] = entry.Name()
		}
	}
	return out
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
