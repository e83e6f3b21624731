package avatar

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/lumenwave/go-host/internal/log"
)

// ErrMicUnavailable is returned when no capture device can be opened.
// The bridge treats this as non-fatal: the stream proceeds without audio.
var ErrMicUnavailable = errors.New("avatar: microphone unavailable")

// AudioChunk is a block of captured PCM16 samples.
type AudioChunk struct {
	// Samples contains interleaved little-endian PCM16 samples.
	Samples []int16

	// SampleRate is the capture rate in Hz.
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int
}

// FromBytes populates the chunk from raw little-endian PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = make([]int16, len(data)/2)
	for i := range c.Samples {
		c.Samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
}

// AudioInput captures microphone audio for the outbound stream track.
type AudioInput interface {
	// Start begins capture. Returns ErrMicUnavailable when no device
	// can be opened.
	Start(ctx context.Context) error

	// Stream returns the captured chunk channel. Closed on Stop.
	Stream() <-chan AudioChunk

	// Stop halts capture and releases the device. Safe to call twice.
	Stop() error
}

// micSampleRate and micChannels match the engine's Opus track settings.
const (
	micSampleRate = 48000
	micChannels   = 1

	// micFrameSamples is one 20 ms Opus frame at 48 kHz mono.
	micFrameSamples = 960
)

// MicInput captures from the default ALSA device via arecord.
// A subprocess keeps the capture path free of cgo.
type MicInput struct {
	device string

	// command overrides the capture argv (tests).
	command []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stream  chan AudioChunk
	done    chan struct{}
	running bool
}

// NewMicInput creates a microphone input for the given ALSA device.
// An empty device selects the default.
func NewMicInput(device string) *MicInput {
	if device == "" {
		device = "default"
	}
	return &MicInput{device: device}
}

func (m *MicInput) captureArgs() []string {
	if len(m.command) > 0 {
		return m.command
	}
	return []string{"arecord",
		"-D", m.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(micSampleRate),
		"-c", strconv.Itoa(micChannels),
		"-t", "raw",
		"-q"}
}

// Start spawns the capture subprocess.
func (m *MicInput) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	argv := m.captureArgs()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ErrMicUnavailable
	}
	if err := cmd.Start(); err != nil {
		return ErrMicUnavailable
	}

	m.cmd = cmd
	m.stream = make(chan AudioChunk, 16)
	m.done = make(chan struct{})
	m.running = true

	go m.readLoop(stdout)

	log.Info("microphone capture started", "device", m.device)
	return nil
}

// readLoop slices the raw PCM stream into fixed 20 ms frames. It is the
// sole owner of the stream channel and the process handle: when the
// pipe ends it reaps the child before closing the stream, whether the
// process exited on its own or was killed by Stop.
func (m *MicInput) readLoop(r io.Reader) {
	defer func() {
		m.cmd.Wait()

		m.mu.Lock()
		m.running = false
		close(m.stream)
		m.mu.Unlock()

		close(m.done)
	}()

	buf := make([]byte, micFrameSamples*micChannels*2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, micSampleRate, micChannels)

		select {
		case m.stream <- chunk:
		default:
			// Consumer lagging, drop the frame.
		}
	}
}

// Stream returns the captured chunk channel.
func (m *MicInput) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// Stop kills the capture subprocess and waits for the read loop to
// reap it and close the stream. Safe to call twice or when the process
// already exited on its own.
func (m *MicInput) Stop() error {
	m.mu.Lock()
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
	<-done

	log.Info("microphone capture stopped", "device", m.device)
	return nil
}
