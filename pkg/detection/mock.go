package detection

import "sync"

// Mock implements Classifier for testing.
// Results are served from a scripted queue; when the queue is empty the
// last result is repeated.
type Mock struct {
	// ClassifyFunc overrides the scripted queue when set.
	ClassifyFunc func(jpeg []byte) ([]Detection, error)

	mu     sync.Mutex
	queue  [][]Detection
	last   []Detection
	errs   []error
	calls  int
	closed bool
}

// NewMock creates a mock classifier with no scripted results.
func NewMock() *Mock {
	return &Mock{}
}

// Queue appends one frame's worth of detections to the script.
func (m *Mock) Queue(dets ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, dets)
	m.errs = append(m.errs, nil)
}

// QueueError appends a classification failure to the script.
func (m *Mock) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, nil)
	m.errs = append(m.errs, err)
}

// Classify serves the next scripted result.
func (m *Mock) Classify(jpeg []byte) ([]Detection, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(jpeg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.queue) == 0 {
		return m.last, nil
	}

	dets, err := m.queue[0], m.errs[0]
	m.queue, m.errs = m.queue[1:], m.errs[1:]
	m.last = dets
	return dets, err
}

// Calls returns the number of Classify invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Person is a convenience constructor for a person detection.
func Person(confidence float64) Detection {
	return Detection{
		Label:      "person",
		Confidence: confidence,
		Box:        Box{X: 0.3, Y: 0.2, W: 0.4, H: 0.6},
	}
}

var _ Classifier = (*Mock)(nil)
