package camera

import "sync"

// Mock implements Source for testing.
type Mock struct {
	// CaptureFunc overrides the default frame when set.
	CaptureFunc func() ([]byte, error)

	mu       sync.Mutex
	frame    []byte
	ready    bool
	captures int
	closed   bool
}

// NewMock creates a ready mock source serving a placeholder frame.
func NewMock() *Mock {
	return &Mock{
		frame: []byte("jpeg"),
		ready: true,
	}
}

// CaptureJPEG returns the configured frame.
func (m *Mock) CaptureJPEG() ([]byte, error) {
	m.mu.Lock()
	m.captures++
	m.mu.Unlock()

	if m.CaptureFunc != nil {
		return m.CaptureFunc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, nil
}

// Ready reports the configured readiness.
func (m *Mock) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && !m.closed
}

// SetReady changes the readiness state.
func (m *Mock) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// Captures returns the number of CaptureJPEG calls.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Source = (*Mock)(nil)
