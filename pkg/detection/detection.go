// Package detection provides object detection over camera frames.
package detection

import "time"

// Box is a bounding box in normalized image coordinates (0-1).
type Box struct {
	X, Y float64 // Top-left corner
	W, H float64 // Width and height
}

// Center returns the center point of the box.
func (b Box) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the area of the box.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Detection is a single labeled detection in a frame.
type Detection struct {
	Label      string  // COCO class name, e.g. "person"
	Confidence float64 // Detection confidence (0-1)
	Box        Box
}

// Sample is the result of classifying one frame.
// It is produced once per sampling tick and consumed immediately.
type Sample struct {
	Timestamp  time.Time
	Detections []Detection
}

// Matching returns the detections with the given label at or above
// the confidence threshold.
func (s Sample) Matching(label string, minConfidence float64) []Detection {
	var out []Detection
	for _, d := range s.Detections {
		if d.Label == label && d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out
}

// Classifier finds labeled objects in a JPEG-encoded frame.
type Classifier interface {
	// Classify runs inference on one frame.
	Classify(jpeg []byte) ([]Detection, error)

	// Close releases resources.
	Close() error
}

// Config holds classifier configuration.
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float32 // Minimum confidence kept by the model
	NMSThresh        float32 // Non-maximum suppression threshold
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YOLOv8n.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}
