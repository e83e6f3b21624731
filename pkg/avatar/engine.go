package avatar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
)

// DefaultEngineURL is the production engine signalling endpoint.
const DefaultEngineURL = "wss://engine.anam.ai/v1/engine/ws"

const signallingTimeout = 10 * time.Second

// signalMessage is the engine's signalling envelope.
type signalMessage struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EngineClient is a WebRTC connection to the avatar engine.
//
// Signalling runs over a websocket authenticated by the stream token;
// media arrives on remote video and audio tracks and the microphone
// goes out on a local Opus track.
type EngineClient struct {
	engineURL string

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	micTrack *webrtc.TrackLocalStaticSample
	enc      *opus.Encoder
	encBuf   []byte

	onStarted func()
	onClosed  func()
	cbMu      sync.Mutex

	// pendingICE holds candidates that arrived before the answer; they
	// can only be applied once the remote description is set.
	pendingICE []json.RawMessage
	iceMu      sync.Mutex

	startedOnce sync.Once
	closedOnce  sync.Once
	closed      bool
	closeMu     sync.Mutex
}

// EngineOption configures an EngineClient.
type EngineOption func(*EngineClient)

// WithEngineURL overrides the signalling endpoint (used in tests).
func WithEngineURL(url string) EngineOption {
	return func(c *EngineClient) {
		c.engineURL = url
	}
}

// NewEngineClient creates an unconnected engine client.
func NewEngineClient(opts ...EngineOption) *EngineClient {
	c := &EngineClient{engineURL: DefaultEngineURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStreamStartedListener registers the media-flowing callback.
func (c *EngineClient) SetStreamStartedListener(fn func()) {
	c.cbMu.Lock()
	c.onStarted = fn
	c.cbMu.Unlock()
}

// SetConnectionClosedListener registers the stream-ended callback.
func (c *EngineClient) SetConnectionClosedListener(fn func()) {
	c.cbMu.Lock()
	c.onClosed = fn
	c.cbMu.Unlock()
}

func (c *EngineClient) fireStarted() {
	c.startedOnce.Do(func() {
		c.cbMu.Lock()
		fn := c.onStarted
		c.cbMu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

func (c *EngineClient) fireClosed() {
	c.closedOnce.Do(func() {
		c.cbMu.Lock()
		fn := c.onClosed
		c.cbMu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// Start connects signalling, negotiates the peer connection and begins
// media flow. Blocks until the offer/answer exchange completes.
func (c *EngineClient) Start(ctx context.Context, token string, persona anam.PersonaConfig) error {
	dialer := websocket.Dialer{HandshakeTimeout: signallingTimeout}

	ws, _, err := dialer.DialContext(ctx, c.engineURL+"?session_token="+token, nil)
	if err != nil {
		return fmt.Errorf("avatar: signalling connect: %w", err)
	}
	c.ws = ws

	if err := c.createPeerConnection(persona); err != nil {
		ws.Close()
		return fmt.Errorf("avatar: peer connection: %w", err)
	}

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		c.Stop()
		return fmt.Errorf("avatar: create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		c.Stop()
		return fmt.Errorf("avatar: set local description: %w", err)
	}
	if err := c.writeSignal(signalMessage{Type: "offer", SDP: offer.SDP}); err != nil {
		c.Stop()
		return fmt.Errorf("avatar: send offer: %w", err)
	}

	if err := c.awaitAnswer(); err != nil {
		c.Stop()
		return err
	}

	go c.handleSignalling()

	log.Info("engine stream negotiated")
	return nil
}

func (c *EngineClient) createPeerConnection(persona anam.PersonaConfig) error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	c.pc = pc

	// Avatar video and voice come from the engine.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return err
		}
	}

	// Microphone goes out as Opus.
	micTrack, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: micSampleRate,
		Channels:  micChannels,
	}, "audio", "host-mic")
	if err != nil {
		return err
	}
	if _, err := pc.AddTrack(micTrack); err != nil {
		return err
	}
	c.micTrack = micTrack

	enc, err := opus.NewEncoder(micSampleRate, micChannels, opus.AppVoIP)
	if err != nil {
		return err
	}
	c.enc = enc
	c.encBuf = make([]byte, 4000)

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug("engine track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.consumeVideo(track)
		} else {
			go c.drainTrack(track)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		raw, err := json.Marshal(init)
		if err != nil {
			return
		}
		c.writeSignal(signalMessage{Type: "ice", Candidate: raw})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("engine connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			c.fireClosed()
		}
	})

	return nil
}

// awaitAnswer blocks for the engine's SDP answer, applying any ICE
// candidates that arrive ahead of it.
func (c *EngineClient) awaitAnswer() error {
	c.ws.SetReadDeadline(time.Now().Add(signallingTimeout))
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		var msg signalMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("avatar: await answer: %w", err)
		}

		switch msg.Type {
		case "answer":
			if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer,
				SDP:  msg.SDP,
			}); err != nil {
				return err
			}
			c.applyPendingCandidates()
			return nil
		case "ice":
			c.addRemoteCandidate(msg.Candidate)
		}
	}
}

// handleSignalling processes post-negotiation messages until the socket
// closes.
func (c *EngineClient) handleSignalling() {
	for {
		var msg signalMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !c.isClosed() {
				log.Debug("signalling read ended", "error", err)
				c.fireClosed()
			}
			return
		}

		switch msg.Type {
		case "ice":
			c.addRemoteCandidate(msg.Candidate)
		case "endSession":
			c.fireClosed()
			return
		}
	}
}

// addRemoteCandidate applies a remote ICE candidate, buffering it when
// the answer has not arrived yet: the peer connection rejects
// candidates until the remote description is set.
func (c *EngineClient) addRemoteCandidate(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	if c.pc.RemoteDescription() == nil {
		c.iceMu.Lock()
		c.pendingICE = append(c.pendingICE, raw)
		c.iceMu.Unlock()
		return
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		log.Debug("bad ice candidate", "error", err)
		return
	}
	if err := c.pc.AddICECandidate(init); err != nil {
		log.Debug("add ice candidate failed", "error", err)
	}
}

// applyPendingCandidates flushes candidates buffered before the answer.
func (c *EngineClient) applyPendingCandidates() {
	c.iceMu.Lock()
	pending := c.pendingICE
	c.pendingICE = nil
	c.iceMu.Unlock()

	for _, raw := range pending {
		c.addRemoteCandidate(raw)
	}
}

func (c *EngineClient) writeSignal(msg signalMessage) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// consumeVideo drains the avatar video track. The first RTP packet
// marks the stream as started.
func (c *EngineClient) consumeVideo(track *webrtc.TrackRemote) {
	var pkt *rtp.Packet
	var err error

	for {
		pkt, _, err = track.ReadRTP()
		if err != nil {
			return
		}
		if pkt != nil {
			c.fireStarted()
			break
		}
	}

	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

// drainTrack keeps a non-video track's buffer from backing up.
func (c *EngineClient) drainTrack(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

// RequestQuality sends the persona's stream quality settings over
// signalling. Best effort.
func (c *EngineClient) RequestQuality(persona anam.PersonaConfig) error {
	payload, err := json.Marshal(map[string]any{
		"videoQuality": persona.VideoQuality,
		"videoBitrate": persona.VideoBitrate,
		"audioBitrate": persona.AudioBitrate,
	})
	if err != nil {
		return err
	}
	return c.writeSignal(signalMessage{Type: "quality", Payload: payload})
}

// WriteAudio encodes a PCM16 chunk to Opus and writes it to the
// outbound microphone track.
func (c *EngineClient) WriteAudio(chunk AudioChunk) error {
	if c.micTrack == nil || c.enc == nil {
		return nil
	}

	n, err := c.enc.Encode(chunk.Samples, c.encBuf)
	if err != nil {
		return fmt.Errorf("avatar: opus encode: %w", err)
	}

	frame := time.Duration(len(chunk.Samples)/max(chunk.Channels, 1)) *
		time.Second / time.Duration(max(chunk.SampleRate, 1))

	return c.micTrack.WriteSample(media.Sample{
		Data:     append([]byte(nil), c.encBuf[:n]...),
		Duration: frame,
	})
}

func (c *EngineClient) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

// Stop closes the peer connection and signalling socket. The closed
// listener is not fired from here; teardown callers already know.
func (c *EngineClient) Stop() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	// Suppress the state-change callback racing the explicit stop.
	c.closedOnce.Do(func() {})

	if c.pc != nil {
		c.pc.Close()
	}
	if c.ws != nil {
		c.ws.Close()
	}
	return nil
}
