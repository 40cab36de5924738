// Package v4l2 provides direct kernel access to Video4Linux2 capture
// devices without cgo. It covers the subset of the V4L2 ioctl surface
// needed to enumerate capture nodes, negotiate a pixel format, adjust
// image controls, and pull frames with read()-based I/O.
package v4l2
