// Package presence turns per-frame object detections into debounced,
// edge-triggered presence events.
//
// The detector samples a video source on a fixed period, filters the
// classifier output to qualifying person detections, and fires OnAppeared
// exactly once when a person enters the frame and OnLost exactly once after
// a configurable number of consecutive misses. Detection flicker inside a
// presence run never refires events.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/camera"
	"github.com/lumenwave/go-host/pkg/detection"
)

// ErrAlreadyStarted is returned when Start is called on a running detector.
var ErrAlreadyStarted = errors.New("presence: detector already started")

// Detection status strings surfaced to the UI.
const (
	StatusScanning    = "Scanning for people..."
	StatusDetected    = "Person detected"
	StatusLost        = "Person lost"
	StatusDenied      = "Camera access denied"
	StatusUnavailable = "Camera unavailable"
)

// Config holds detector tuning.
type Config struct {
	// Interval is the sampling period.
	Interval time.Duration

	// Confidence is the minimum qualifying detection confidence.
	Confidence float64

	// MissThreshold is how many consecutive empty samples are tolerated
	// before a present person is declared lost.
	MissThreshold int

	// Label is the detection class that counts as a person.
	Label string
}

// DefaultConfig returns the production detection defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      1000 * time.Millisecond,
		Confidence:    0.6,
		MissThreshold: 3,
		Label:         "person",
	}
}

// Detector runs the presence sampling loop.
type Detector struct {
	config     Config
	classifier detection.Classifier

	// OnAppeared fires once per maximal run of qualifying samples.
	OnAppeared func()

	// OnLost fires once after MissThreshold consecutive misses.
	OnLost func()

	mu                sync.Mutex
	isPresent         bool
	consecutiveMisses int
	status            string
	lastDetections    []detection.Detection
	running           bool
	cancel            context.CancelFunc
}

// New creates a detector with the given classifier.
func New(cfg Config, classifier detection.Classifier) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = DefaultConfig().MissThreshold
	}
	if cfg.Label == "" {
		cfg.Label = DefaultConfig().Label
	}
	return &Detector{
		config:     cfg,
		classifier: classifier,
		status:     StatusScanning,
	}
}

// Start begins the sampling loop over the video source.
// A camera acquisition failure terminates the start attempt: ErrDenied and
// ErrUnavailable are reported upward distinctly and the loop is not started.
func (d *Detector) Start(ctx context.Context, video camera.Source) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}

	// Probe the source once so permission problems surface here rather
	// than as per-tick noise.
	if video.Ready() {
		if _, err := video.CaptureJPEG(); err != nil {
			switch {
			case errors.Is(err, camera.ErrDenied):
				d.status = StatusDenied
				d.mu.Unlock()
				return err
			case errors.Is(err, camera.ErrUnavailable):
				d.status = StatusUnavailable
				d.mu.Unlock()
				return err
			}
			// Transient capture failure: the loop will retry per tick.
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.status = StatusScanning
	d.mu.Unlock()

	go d.run(loopCtx, video)
	return nil
}

// Stop halts the sampling loop and resets presence state.
// Safe to call when not started.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.running = false
	d.isPresent = false
	d.consecutiveMisses = 0
	d.lastDetections = nil
	d.status = StatusScanning
}

// run is the fixed-period sampling loop.
func (d *Detector) run(ctx context.Context, video camera.Source) {
	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	log.Info("presence detector started",
		"interval", d.config.Interval,
		"confidence", d.config.Confidence,
		"miss_threshold", d.config.MissThreshold)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(video)
		}
	}
}

// tick takes one detection sample and applies the hysteresis rules.
func (d *Detector) tick(video camera.Source) {
	if !video.Ready() {
		return
	}

	frame, err := video.CaptureJPEG()
	if err != nil {
		d.setDegraded(fmt.Sprintf("Capture failed: %v", err))
		return
	}

	dets, err := d.classifier.Classify(frame)
	if err != nil {
		d.setDegraded(fmt.Sprintf("Detection error: %v", err))
		return
	}

	sample := detection.Sample{Timestamp: time.Now(), Detections: dets}
	d.observe(sample)
}

// observe applies one sample to the presence state machine.
// Events are fired outside the lock.
func (d *Detector) observe(sample detection.Sample) {
	qualifying := sample.Matching(d.config.Label, d.config.Confidence)

	var fire func()

	d.mu.Lock()
	d.lastDetections = qualifying

	switch {
	case len(qualifying) > 0:
		d.consecutiveMisses = 0
		d.status = StatusDetected
		if !d.isPresent {
			d.isPresent = true
			fire = d.OnAppeared
		}

	case d.isPresent:
		d.consecutiveMisses++
		d.status = fmt.Sprintf("Searching... (%d)", d.consecutiveMisses)
		if d.consecutiveMisses >= d.config.MissThreshold {
			d.isPresent = false
			d.consecutiveMisses = 0
			d.status = StatusLost
			fire = d.OnLost
		}

	default:
		// Nobody present and nobody was: stay quiescent.
		d.status = StatusScanning
	}
	d.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// setDegraded records a non-fatal failure status for this tick.
// No automatic retry happens within the tick.
func (d *Detector) setDegraded(status string) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
	log.Warn("presence detection degraded", "status", status)
}

// IsPresent reports the current debounced presence state.
func (d *Detector) IsPresent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isPresent
}

// Status returns the human-readable detection status.
func (d *Detector) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// LastDetections returns the qualifying detections from the most recent
// sample, for rendering overlays.
func (d *Detector) LastDetections() []detection.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]detection.Detection, len(d.lastDetections))
	copy(out, d.lastDetections)
	return out
}
