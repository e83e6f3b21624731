package avatar

import (
	"context"
	"sync"

	"github.com/lumenwave/go-host/pkg/anam"
)

// MockStream is a scripted StreamClient for tests.
type MockStream struct {
	// StartErr is returned from Start when set.
	StartErr error

	// QualityErr is returned from RequestQuality when set.
	QualityErr error

	mu        sync.Mutex
	onStarted func()
	onClosed  func()
	events    []string
	audio     []AudioChunk
}

// NewMockStream creates an empty mock stream client.
func NewMockStream() *MockStream {
	return &MockStream{}
}

// Start records the call.
func (m *MockStream) Start(_ context.Context, token string, _ anam.PersonaConfig) error {
	m.record("start:" + token)
	return m.StartErr
}

// SetStreamStartedListener stores or clears the callback.
func (m *MockStream) SetStreamStartedListener(fn func()) {
	m.mu.Lock()
	m.onStarted = fn
	m.mu.Unlock()
}

// SetConnectionClosedListener stores or clears the callback.
func (m *MockStream) SetConnectionClosedListener(fn func()) {
	m.mu.Lock()
	m.onClosed = fn
	m.mu.Unlock()
}

// RequestQuality records the call.
func (m *MockStream) RequestQuality(_ anam.PersonaConfig) error {
	m.record("quality")
	return m.QualityErr
}

// WriteAudio records the chunk.
func (m *MockStream) WriteAudio(chunk AudioChunk) error {
	m.mu.Lock()
	m.audio = append(m.audio, chunk)
	m.mu.Unlock()
	return nil
}

// Stop records the call.
func (m *MockStream) Stop() error {
	m.record("stop")
	return nil
}

// FireStreamStarted invokes the registered started callback.
func (m *MockStream) FireStreamStarted() {
	m.mu.Lock()
	fn := m.onStarted
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireConnectionClosed invokes the registered closed callback.
func (m *MockStream) FireConnectionClosed() {
	m.mu.Lock()
	fn := m.onClosed
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// HasClosedListener reports whether a closed callback is registered.
func (m *MockStream) HasClosedListener() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onClosed != nil
}

// Events returns the recorded call sequence.
func (m *MockStream) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

// AudioChunks returns the recorded audio writes.
func (m *MockStream) AudioChunks() []AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AudioChunk, len(m.audio))
	copy(out, m.audio)
	return out
}

func (m *MockStream) record(ev string) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

var _ StreamClient = (*MockStream)(nil)

// MockAudio is a scripted AudioInput for tests.
type MockAudio struct {
	// StartErr makes Start fail, simulating a missing device.
	StartErr error

	mu      sync.Mutex
	ch      chan AudioChunk
	started bool
	stopped bool
}

// NewMockAudio creates a mock microphone.
func NewMockAudio() *MockAudio {
	return &MockAudio{ch: make(chan AudioChunk, 16)}
}

// Start begins the fake capture.
func (m *MockAudio) Start(_ context.Context) error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

// Stream returns the chunk channel.
func (m *MockAudio) Stream() <-chan AudioChunk {
	return m.ch
}

// Push queues a chunk as if captured.
func (m *MockAudio) Push(chunk AudioChunk) {
	m.ch <- chunk
}

// Stop closes the channel once.
func (m *MockAudio) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.ch)
	return nil
}

// Started reports whether Start succeeded.
func (m *MockAudio) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stopped reports whether Stop ran.
func (m *MockAudio) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

var _ AudioInput = (*MockAudio)(nil)
