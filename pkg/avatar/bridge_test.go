package avatar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenwave/go-host/pkg/anam"
)

// recorder captures ordered events across fakes and status callbacks.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// recordedStream wraps MockStream, logging Stop into the recorder.
type recordedStream struct {
	*MockStream
	rec *recorder
}

func (s *recordedStream) Stop() error {
	s.rec.add("stream-stop")
	return s.MockStream.Stop()
}

// recordedMic wraps MockAudio, logging Stop into the recorder.
type recordedMic struct {
	*MockAudio
	rec *recorder
}

func (m *recordedMic) Stop() error {
	if !m.MockAudio.Stopped() {
		m.rec.add("mic-stop")
	}
	return m.MockAudio.Stop()
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestInitializeConnectsAndUpgradesQuality(t *testing.T) {
	stream := NewMockStream()
	b := NewBridge(func() StreamClient { return stream }, nil)

	var statuses []Status
	var mu sync.Mutex
	b.OnStatus = func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if b.Status() != StatusConnecting {
		t.Errorf("status = %v, want connecting", b.Status())
	}

	stream.FireStreamStarted()

	if b.Status() != StatusConnected {
		t.Errorf("status = %v, want connected", b.Status())
	}

	events := stream.Events()
	if len(events) < 2 || events[0] != "start:tok" || events[1] != "quality" {
		t.Errorf("events = %v, want [start:tok quality]", events)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusConnecting, StatusConnected}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %v, want %v", i, statuses[i], want[i])
		}
	}
}

func TestQualityFailureIsNotFatal(t *testing.T) {
	stream := NewMockStream()
	stream.QualityErr = errors.New("unsupported")
	b := NewBridge(func() StreamClient { return stream }, nil)

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	stream.FireStreamStarted()

	if b.Status() != StatusConnected {
		t.Errorf("status = %v, want connected despite quality failure", b.Status())
	}
}

func TestMicFailureStreamsWithoutAudio(t *testing.T) {
	stream := NewMockStream()
	mic := NewMockAudio()
	mic.StartErr = ErrMicUnavailable
	b := NewBridge(
		func() StreamClient { return stream },
		func() AudioInput { return mic },
	)

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize should proceed without mic, got %v", err)
	}
	if got := stream.Events(); len(got) == 0 || got[0] != "start:tok" {
		t.Errorf("stream never started: events = %v", got)
	}
}

func TestMicChunksReachStream(t *testing.T) {
	stream := NewMockStream()
	mic := NewMockAudio()
	b := NewBridge(
		func() StreamClient { return stream },
		func() AudioInput { return mic },
	)

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	mic.Push(AudioChunk{Samples: make([]int16, 960), SampleRate: 48000, Channels: 1})

	waitFor(t, func() bool { return len(stream.AudioChunks()) == 1 }, "audio chunk")
}

func TestTeardownOrdering(t *testing.T) {
	rec := &recorder{}
	stream := &recordedStream{MockStream: NewMockStream(), rec: rec}
	mic := &recordedMic{MockAudio: NewMockAudio(), rec: rec}
	b := NewBridge(
		func() StreamClient { return stream },
		func() AudioInput { return mic },
	)
	b.OnStatus = func(s Status) {
		if s == StatusDisconnected {
			rec.add("status-disconnected")
		}
	}

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	b.Teardown()

	want := []string{"stream-stop", "mic-stop", "status-disconnected"}
	got := rec.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	if stream.HasClosedListener() {
		t.Error("closed listener not cleared on teardown")
	}
	if b.Status() != StatusDisconnected {
		t.Errorf("status = %v, want disconnected", b.Status())
	}
}

func TestTeardownIdempotent(t *testing.T) {
	stream := NewMockStream()
	b := NewBridge(func() StreamClient { return stream }, nil)

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	b.Teardown()
	b.Teardown()

	stops := 0
	for _, ev := range stream.Events() {
		if ev == "stop" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("stream stopped %d times, want 1", stops)
	}
}

func TestReinitializeShutsDownPriorStream(t *testing.T) {
	first := NewMockStream()
	second := NewMockStream()
	clients := []StreamClient{first, second}
	b := NewBridge(func() StreamClient {
		c := clients[0]
		clients = clients[1:]
		return c
	}, nil)

	if err := b.Initialize(context.Background(), "tok-1", anam.DefaultPersona()); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := b.Initialize(context.Background(), "tok-2", anam.DefaultPersona()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	firstEvents := first.Events()
	if len(firstEvents) != 2 || firstEvents[1] != "stop" {
		t.Errorf("first stream events = %v, want [start:tok-1 stop]", firstEvents)
	}
	if got := second.Events(); len(got) != 1 || got[0] != "start:tok-2" {
		t.Errorf("second stream events = %v, want [start:tok-2]", got)
	}
	if b.Status() != StatusConnecting {
		t.Errorf("status = %v, want connecting", b.Status())
	}
}

// blockingStream gates Start so tests can hold initialization open.
type blockingStream struct {
	*MockStream
	startEntered chan struct{}
	release      chan struct{}
}

func (s *blockingStream) Start(ctx context.Context, token string, persona anam.PersonaConfig) error {
	close(s.startEntered)
	<-s.release
	return s.MockStream.Start(ctx, token, persona)
}

// A teardown racing an initialization must wait for it: the stream may
// not be stopped-and-forgotten while Start is still in flight, or the
// bridge would leak a live stream it no longer tracks.
func TestTeardownWaitsForInitialization(t *testing.T) {
	stream := &blockingStream{
		MockStream:   NewMockStream(),
		startEntered: make(chan struct{}),
		release:      make(chan struct{}),
	}
	b := NewBridge(func() StreamClient { return stream }, nil)

	go b.Initialize(context.Background(), "tok", anam.DefaultPersona())
	<-stream.startEntered

	tornDown := make(chan struct{})
	go func() {
		b.Teardown()
		close(tornDown)
	}()

	select {
	case <-tornDown:
		t.Fatal("teardown completed while initialization was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(stream.release)
	waitFor(t, func() bool {
		select {
		case <-tornDown:
			return true
		default:
			return false
		}
	}, "teardown to complete")

	events := stream.Events()
	if len(events) != 2 || events[0] != "start:tok" || events[1] != "stop" {
		t.Errorf("events = %v, want [start:tok stop]", events)
	}
	if b.Status() != StatusDisconnected {
		t.Errorf("status = %v, want disconnected", b.Status())
	}
}

func TestConnectionClosedTearsDown(t *testing.T) {
	stream := NewMockStream()
	b := NewBridge(func() StreamClient { return stream }, nil)

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	stream.FireStreamStarted()
	stream.FireConnectionClosed()

	if b.Status() != StatusDisconnected {
		t.Errorf("status = %v, want disconnected", b.Status())
	}
}

func TestStartFailureReportsErrored(t *testing.T) {
	stream := NewMockStream()
	stream.StartErr = errors.New("engine refused")
	b := NewBridge(func() StreamClient { return stream }, nil)

	var statuses []Status
	var mu sync.Mutex
	b.OnStatus = func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}

	if err := b.Initialize(context.Background(), "tok", anam.DefaultPersona()); err == nil {
		t.Fatal("Initialize should fail when the engine refuses")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusConnecting, StatusErrored, StatusDisconnected}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %v, want %v", i, statuses[i], want[i])
		}
	}
	if b.Status() != StatusDisconnected {
		t.Errorf("final status = %v, want disconnected", b.Status())
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusDisconnected: "disconnected",
		StatusConnecting:   "connecting",
		StatusConnected:    "connected",
		StatusErrored:      "errored",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
