package recorder

import "errors"

var (
	// ErrAlreadyActive is returned by Start while a recording session
	// holds the single recording slot.
	ErrAlreadyActive = errors.New("recorder: recording already active")

	// ErrNotRecording is returned by Stop when no session is active.
	ErrNotRecording = errors.New("recorder: no active recording")
)
