package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam captures frames from a local video device via OpenCV.
type Webcam struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	img    gocv.Mat
	closed bool
}

// OpenWebcam opens the configured video device.
// Returns ErrDenied when the device exists but cannot be accessed, and
// ErrUnavailable when no usable device is present.
func OpenWebcam(cfg Config) (*Webcam, error) {
	if err := probeDevice(cfg.Device); err != nil {
		return nil, err
	}

	var dev interface{} = cfg.Device
	if id, err := strconv.Atoi(cfg.Device); err == nil {
		dev = id
	}

	cap, err := gocv.OpenVideoCapture(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if cfg.Width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	return &Webcam{
		cap: cap,
		img: gocv.NewMat(),
	}, nil
}

// probeDevice distinguishes a permission failure from a missing device.
// Only meaningful for path-style devices; numeric ids are probed as
// /dev/videoN on Linux.
func probeDevice(device string) error {
	path := device
	if id, err := strconv.Atoi(device); err == nil {
		path = fmt.Sprintf("/dev/video%d", id)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrUnavailable
		}
		if errors.Is(err, fs.ErrPermission) {
			return ErrDenied
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, info.Mode())
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ErrDenied
		}
		return nil // Let OpenCV try anyway
	}
	f.Close()
	return nil
}

// CaptureJPEG grabs the current frame and encodes it as JPEG.
func (w *Webcam) CaptureJPEG() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.cap == nil {
		return nil, ErrUnavailable
	}

	if ok := w.cap.Read(&w.img); !ok || w.img.Empty() {
		return nil, fmt.Errorf("camera: no frame available")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, w.img)
	if err != nil {
		return nil, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// Ready reports whether the device is open.
func (w *Webcam) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.cap != nil && w.cap.IsOpened()
}

// Close releases the device.
// Safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.img.Close()
	if w.cap != nil {
		return w.cap.Close()
	}
	return nil
}

var _ Source = (*Webcam)(nil)
