// Package hotkey dispatches global key chords to controller actions via
// gohook, the same global-hook library this pack's fishing-bot reference
// uses for its pause toggle.
package hotkey

import (
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// Chords names the three key combinations §4.3 requires: start, stop, and
// emergency-stop. Each is a gohook key name, e.g. "f6" or "ctrl+shift+q".
type Chords struct {
	Start         string
	Stop          string
	EmergencyStop string
}

// DefaultChords matches the hotkey_start/_stop/_emergency defaults in §6.
func DefaultChords() Chords {
	return Chords{Start: "f6", Stop: "f7", EmergencyStop: "f8"}
}

// Controller is the subset of fishing.Controller the dispatcher drives.
// Defined here rather than imported from fishing to keep this adapter
// package from needing anything beyond the three methods it calls.
type Controller interface {
	Start() error
	Stop()
	EmergencyStop()
}

// Dispatcher owns the single hotkey-listener goroutine named in the thread
// roster (§5). It is started once and stopped once; registering new chords
// after Start requires a new Dispatcher.
type Dispatcher struct {
	chords     Chords
	controller Controller
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	eventCh chan hook.Event
}

// New builds a Dispatcher wired to controller. It does not start listening
// until Start is called.
func New(chords Chords, controller Controller, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{chords: chords, controller: controller, logger: logger}
}

// Start registers the three chords and begins the hook's event loop in its
// own goroutine. Start is idempotent: calling it twice without Stop in
// between is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	d.registerChord(d.chords.Start, func() {
		if err := d.controller.Start(); err != nil {
			d.logger.Warn("hotkey: start failed", "error", err)
		}
	})
	d.registerChord(d.chords.Stop, d.controller.Stop)
	d.registerChord(d.chords.EmergencyStop, d.controller.EmergencyStop)

	d.eventCh = hook.Start()
	go func() {
		<-hook.Process(d.eventCh)
	}()
}

// registerChord translates a chord string like "ctrl+shift+q" into the
// keys-plus-modifiers form gohook.Register expects.
func (d *Dispatcher) registerChord(chord string, action func()) {
	if chord == "" {
		return
	}
	keys := strings.Split(strings.ToLower(chord), "+")
	hook.Register(hook.KeyDown, keys, func(e hook.Event) {
		action()
	})
}

// Stop ends the hook's event loop. The listener goroutine it spawned
// returns once hook.End unblocks hook.Process.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	hook.End()
	d.running = false
}
