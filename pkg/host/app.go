// Package host wires presence events, the session controller and the
// stream bridge into one lifecycle state machine.
//
// Presence stays armed in every state: the detector keeps watching even
// during an active stream so it can catch the person leaving. The
// auto-launch flag is one-shot per appearance; it re-arms only when the
// session fully closes.
package host

import (
	"context"
	"sync"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
	"github.com/lumenwave/go-host/pkg/avatar"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	// StateIdle means no session exists and none is being set up.
	StateIdle State = iota

	// StateLaunching means a session start has been requested.
	StateLaunching

	// StateActive means the avatar stream is live.
	StateActive

	// StateClosing means teardown is in progress.
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "idle"
	}
}

// SessionController sequences token acquisition.
// *session.Controller satisfies this.
type SessionController interface {
	RequestStart(ctx context.Context, persona anam.PersonaConfig)
	RequestStop()
}

// StreamBridge owns the live stream. *avatar.Bridge satisfies this.
type StreamBridge interface {
	Initialize(ctx context.Context, token string, persona anam.PersonaConfig) error
	Teardown()
}

// App is the orchestration root.
type App struct {
	controller SessionController
	bridge     StreamBridge
	persona    anam.PersonaConfig

	mu           sync.Mutex
	state        State
	autoLaunched bool
}

// NewApp creates the orchestrator over the controller and bridge.
func NewApp(controller SessionController, bridge StreamBridge, persona anam.PersonaConfig) *App {
	return &App{
		controller: controller,
		bridge:     bridge,
		persona:    persona,
	}
}

// State returns the current lifecycle state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// HandlePersonAppeared requests a session launch unless one already ran
// for this appearance. One-shot per appearance.
func (a *App) HandlePersonAppeared(ctx context.Context) {
	a.mu.Lock()
	if a.state != StateIdle || a.autoLaunched {
		a.mu.Unlock()
		return
	}
	a.state = StateLaunching
	a.autoLaunched = true
	a.mu.Unlock()

	log.Info("person appeared, launching session")
	a.controller.RequestStart(ctx, a.persona)
}

// HandleTokenReady hands a freshly acquired token to the bridge.
// Ignored when the launch was abandoned in the meantime.
func (a *App) HandleTokenReady(ctx context.Context, token string) {
	a.mu.Lock()
	if a.state != StateLaunching {
		a.mu.Unlock()
		log.Debug("token arrived outside launch, ignored")
		return
	}
	a.mu.Unlock()

	if err := a.bridge.Initialize(ctx, token, a.persona); err != nil {
		log.Error("stream initialization failed", "error", err)
	}
}

// HandlePersonLost closes any launching or active session and returns
// to idle. The transition completes here rather than waiting on the
// bridge's disconnected report: a launch abandoned before the bridge
// was ever initialized produces no status change, and the auto-launch
// flag must still re-arm for the next appearance.
func (a *App) HandlePersonLost() {
	a.mu.Lock()
	if a.state != StateLaunching && a.state != StateActive {
		a.mu.Unlock()
		return
	}
	a.state = StateClosing
	a.mu.Unlock()

	log.Info("person lost, closing session")
	a.controller.RequestStop()
	a.bridge.Teardown()

	a.mu.Lock()
	a.state = StateIdle
	a.autoLaunched = false
	a.mu.Unlock()
}

// HandleStreamStatus applies a bridge status change.
func (a *App) HandleStreamStatus(s avatar.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch s {
	case avatar.StatusConnected:
		if a.state == StateLaunching {
			a.state = StateActive
			log.Info("session active")
		}

	case avatar.StatusDisconnected, avatar.StatusErrored:
		if a.state != StateIdle {
			a.state = StateIdle
			a.autoLaunched = false
			log.Info("session closed")
		}
	}
}

// Close is the explicit user close: immediate return to idle. The
// controller stop bumps the launch-attempt id so any in-flight token
// fetch lands stale and is discarded.
func (a *App) Close() {
	a.mu.Lock()
	a.state = StateClosing
	a.mu.Unlock()

	log.Info("session closed by user")
	a.controller.RequestStop()
	a.bridge.Teardown()

	a.mu.Lock()
	a.state = StateIdle
	a.autoLaunched = false
	a.mu.Unlock()
}
