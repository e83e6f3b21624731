// Package avatar bridges the streaming engine's lifecycle into a small
// status enum and manages the microphone resource around it.
//
// The bridge serializes initialization and teardown under one mutex: a
// re-initialization while a prior stream exists fully shuts the prior
// stream down first, so two streams never run concurrently for the same
// sink. Teardown order is fixed: stop the stream, release the
// microphone, clear listeners, and only then report disconnected.
package avatar

import (
	"context"
	"sync"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
)

// Status is the bridge's view of the stream connection.
type Status int

const (
	// StatusDisconnected means no stream exists.
	StatusDisconnected Status = iota

	// StatusConnecting means the engine is negotiating a stream.
	StatusConnecting

	// StatusConnected means media is flowing.
	StatusConnected

	// StatusErrored means the engine failed to establish the stream.
	StatusErrored
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusErrored:
		return "errored"
	default:
		return "disconnected"
	}
}

// StreamClient is the engine connection the bridge drives.
// *EngineClient satisfies this; tests use a scripted fake.
type StreamClient interface {
	// Start establishes the stream with the given token and persona.
	Start(ctx context.Context, token string, persona anam.PersonaConfig) error

	// SetStreamStartedListener registers the media-flowing callback.
	SetStreamStartedListener(fn func())

	// SetConnectionClosedListener registers the stream-ended callback.
	SetConnectionClosedListener(fn func())

	// RequestQuality asks the engine for the persona's stream quality.
	RequestQuality(persona anam.PersonaConfig) error

	// WriteAudio forwards a captured microphone chunk.
	WriteAudio(chunk AudioChunk) error

	// Stop tears the stream down. Safe to call twice.
	Stop() error
}

// Bridge owns at most one live stream and its microphone.
type Bridge struct {
	// newClient builds a fresh engine connection per initialization.
	newClient func() StreamClient

	// newMic builds the microphone input, nil to run without audio.
	newMic func() AudioInput

	// OnStatus fires on every status change, outside the bridge lock.
	OnStatus func(Status)

	// lifeMu serializes Initialize and Teardown end to end, so a
	// teardown can never interleave with a half-built stream.
	lifeMu sync.Mutex

	mu      sync.Mutex
	client  StreamClient
	mic     AudioInput
	micStop context.CancelFunc
	status  Status
}

// NewBridge creates a bridge building engine connections with newClient
// and microphones with newMic. newMic may be nil.
func NewBridge(newClient func() StreamClient, newMic func() AudioInput) *Bridge {
	return &Bridge{newClient: newClient, newMic: newMic}
}

// Status returns the current stream status.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// report sets the status and fires OnStatus. Call without the lock held.
func (b *Bridge) report(s Status) {
	b.mu.Lock()
	changed := b.status != s
	b.status = s
	fn := b.OnStatus
	b.mu.Unlock()

	if changed && fn != nil {
		fn(s)
	}
}

// Initialize establishes a stream with the given token and persona.
//
// A still-live prior stream is fully torn down first. Microphone
// acquisition is best-effort: on failure the stream proceeds without
// audio input.
func (b *Bridge) Initialize(ctx context.Context, token string, persona anam.PersonaConfig) error {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	b.mu.Lock()
	if b.client != nil {
		b.teardownLocked()
	}

	client := b.newClient()
	b.client = client
	b.mu.Unlock()

	b.report(StatusConnecting)

	client.SetStreamStartedListener(func() {
		b.report(StatusConnected)
		// Quality bump is an optimization, never fatal.
		if err := client.RequestQuality(persona); err != nil {
			log.Warn("stream quality request failed", "error", err)
		}
	})
	client.SetConnectionClosedListener(func() {
		b.Teardown()
	})

	if b.newMic != nil {
		mic := b.newMic()
		micCtx, cancel := context.WithCancel(context.Background())
		if err := mic.Start(micCtx); err != nil {
			cancel()
			log.Warn("microphone unavailable, streaming without audio input", "error", err)
		} else {
			b.mu.Lock()
			b.mic = mic
			b.micStop = cancel
			b.mu.Unlock()
			go pumpAudio(mic, client)
		}
	}

	if err := client.Start(ctx, token, persona); err != nil {
		log.Error("stream start failed", "error", err)
		b.report(StatusErrored)
		b.teardown()
		return err
	}

	return nil
}

// pumpAudio forwards microphone chunks until the stream channel closes.
func pumpAudio(mic AudioInput, client StreamClient) {
	for chunk := range mic.Stream() {
		if err := client.WriteAudio(chunk); err != nil {
			log.Debug("audio write failed", "error", err)
			return
		}
	}
}

// Teardown shuts down the stream and reports disconnected.
// Idempotent; waits out any initialization in progress.
func (b *Bridge) Teardown() {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()
	b.teardown()
}

// teardown is Teardown without the lifecycle lock, for use inside an
// initialization that already holds it.
func (b *Bridge) teardown() {
	b.mu.Lock()
	b.teardownLocked()
	b.mu.Unlock()

	b.report(StatusDisconnected)
}

// teardownLocked releases the stream and microphone. Caller holds b.mu.
// The disconnected report happens after release, in the caller.
func (b *Bridge) teardownLocked() {
	if b.client != nil {
		b.client.SetStreamStartedListener(nil)
		if err := b.client.Stop(); err != nil {
			log.Debug("stream stop error", "error", err)
		}
	}

	if b.mic != nil {
		b.mic.Stop()
		if b.micStop != nil {
			b.micStop()
		}
	}

	if b.client != nil {
		b.client.SetConnectionClosedListener(nil)
	}

	b.client = nil
	b.mic = nil
	b.micStop = nil
}
