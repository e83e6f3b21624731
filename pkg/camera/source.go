// Package camera provides webcam capture for presence detection.
package camera

import "errors"

// Distinct acquisition failures. Denied means the device exists but access
// was refused; unavailable means no usable device was found.
var (
	ErrDenied      = errors.New("camera: access denied")
	ErrUnavailable = errors.New("camera: device unavailable")
)

// Source produces JPEG frames from a live video device.
type Source interface {
	// CaptureJPEG grabs the current frame as JPEG bytes.
	CaptureJPEG() ([]byte, error)

	// Ready reports whether the source can produce a current frame.
	Ready() bool

	// Close releases the device.
	Close() error
}

// Config holds capture configuration.
type Config struct {
	Device string // Device id or path, e.g. "0" or "/dev/video0"
	Width  int
	Height int
}

// DefaultConfig returns the capture defaults used for presence detection.
func DefaultConfig() Config {
	return Config{
		Device: "0",
		Width:  640,
		Height: 480,
	}
}
