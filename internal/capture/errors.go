package capture

import "errors"

var (
	// ErrNotInitialized is returned when an operation needs an open
	// device but the session has none.
	ErrNotInitialized = errors.New("capture: no device open")

	// ErrDeviceUnavailable is returned when a device node cannot be
	// opened or stops producing frames.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
)
