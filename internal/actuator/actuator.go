// Package actuator implements fishing.Actuator on top of robotgo, driving
// mouse clicks and key holds the same way the rest of this pack drives
// simulated input, but against the active foreground window rather than a
// single fixed HWND: the fishing minigame names no stable target window, so
// there is nothing to post WM_* messages to.
package actuator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
	"golang.org/x/sync/errgroup"
)

// Config tunes click cadence and the failsafe corner watcher.
type Config struct {
	// ClickDelayMin/ClickDelayMax bound the randomized interval between
	// fast-click presses, matching the corresponding config keys in §6.
	ClickDelayMin time.Duration
	ClickDelayMax time.Duration
	// FailsafeEnabled mirrors the original's pyautogui FAILSAFE: moving the
	// pointer into the screen's top-left corner aborts everything.
	FailsafeEnabled bool
	// FailsafePollInterval is how often the watcher samples pointer position.
	FailsafePollInterval time.Duration
	// CastHoldTime is how long CastRod holds the left mouse button, matching
	// the cast_hold_time config key in §6.
	CastHoldTime time.Duration
}

// DefaultConfig matches §6's click_delay_min/max and cast_hold_time defaults.
func DefaultConfig() Config {
	return Config{
		ClickDelayMin:        54 * time.Millisecond,
		ClickDelayMax:        127 * time.Millisecond,
		FailsafeEnabled:      true,
		FailsafePollInterval: 50 * time.Millisecond,
		CastHoldTime:         2 * time.Second,
	}
}

// clickState is the fast-click loop's lifecycle, tracked explicitly rather
// than inferred from nil channels: idle (never started), running, and
// paused-without-teardown are three distinct states the controller can
// observe via the loop's own bookkeeping.
type clickState int

const (
	clickIdle clickState = iota
	clickRunning
	clickPaused
)

// Robot implements fishing.Actuator using robotgo for mouse/keyboard input.
// One Robot instance owns exactly one fast-click goroutine plus, optionally,
// one failsafe-watcher goroutine; both are coordinated with an errgroup so
// Close can wait for a clean shutdown of both instead of a bare
// sync.WaitGroup, mirroring this pack's habit of using errgroup whenever
// more than one cooperating goroutine needs to be joined together.
type Robot struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	state  clickState
	cancel context.CancelFunc

	heldKeys   map[string]bool
	heldKeysMu sync.Mutex

	group      *errgroup.Group
	groupCtx   context.Context
	groupStop  context.CancelFunc
	onFailsafe func()
}

// New builds a Robot. onFailsafe is invoked at most once, from the watcher
// goroutine, the first time the pointer is observed in the top-left
// failsafe corner; it is expected to be wired to the controller's
// EmergencyStop. A nil onFailsafe disables the watcher regardless of
// cfg.FailsafeEnabled.
func New(cfg Config, logger *slog.Logger, onFailsafe func()) *Robot {
	if logger == nil {
		logger = slog.Default()
	}
	groupCtx, groupStop := context.WithCancel(context.Background())
	g, groupCtx := errgroup.WithContext(groupCtx)
	r := &Robot{
		cfg:        cfg,
		logger:     logger,
		heldKeys:   make(map[string]bool),
		group:      g,
		groupCtx:   groupCtx,
		groupStop:  groupStop,
		onFailsafe: onFailsafe,
	}
	if cfg.FailsafeEnabled && onFailsafe != nil {
		g.Go(func() error { return r.watchFailsafeCorner(groupCtx) })
	}
	return r
}

// watchFailsafeCorner polls the pointer position and fires onFailsafe once
// if the pointer sits in the top-left 1x1 corner, the same abort gesture
// pyautogui's FAILSAFE used. It returns nil on context cancellation so it
// never causes the errgroup to report a spurious error at shutdown.
func (r *Robot) watchFailsafeCorner(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FailsafePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			x, y := robotgo.Location()
			if x == 0 && y == 0 {
				r.onFailsafe()
				return nil
			}
		}
	}
}

// StartFastClick begins the fast-click loop if it is not already running.
// Calling it while already running or paused is a no-op; callers use
// ResumeFastClick to bring a paused loop back.
func (r *Robot) StartFastClick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != clickIdle {
		return
	}
	ctx, cancel := context.WithCancel(r.groupCtx)
	r.cancel = cancel
	r.state = clickRunning
	r.group.Go(func() error {
		r.runFastClick(ctx)
		return nil
	})
}

// runFastClick is the loop body: click, sleep a randomized delay, repeat,
// honoring pause without tearing the goroutine down.
func (r *Robot) runFastClick(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.mu.Lock()
		paused := r.state == clickPaused
		r.mu.Unlock()
		if paused {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		robotgo.Click()

		delay := randomizedDelay(r.cfg.ClickDelayMin, r.cfg.ClickDelayMax)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// PauseFastClick suspends clicking without stopping the goroutine, so
// ResumeFastClick can bring it back with no startup latency — this is the
// distinction §4.2 draws between "paused" and "stopped".
func (r *Robot) PauseFastClick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == clickRunning {
		r.state = clickPaused
	}
}

// ResumeFastClick un-pauses a paused loop. It is a no-op if the loop is
// idle or already running.
func (r *Robot) ResumeFastClick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == clickPaused {
		r.state = clickRunning
	}
}

// StopFastClick tears the loop down entirely. A subsequent StartFastClick
// spawns a fresh goroutine.
func (r *Robot) StopFastClick() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.state = clickIdle
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// HoldKey presses key down, holds it for duration, then releases it. It
// blocks for the full duration by design: the controller's direction-hold
// actions are inherently synchronous (§4.2).
func (r *Robot) HoldKey(key string, duration time.Duration) error {
	if err := robotgo.KeyToggle(key, "down"); err != nil {
		return fmt.Errorf("actuator: key down %q: %w", key, err)
	}
	r.heldKeysMu.Lock()
	r.heldKeys[key] = true
	r.heldKeysMu.Unlock()

	time.Sleep(duration)

	r.heldKeysMu.Lock()
	delete(r.heldKeys, key)
	r.heldKeysMu.Unlock()
	if err := robotgo.KeyToggle(key, "up"); err != nil {
		return fmt.Errorf("actuator: key up %q: %w", key, err)
	}
	return nil
}

// CastRod performs the rod-cast input gesture: a single left click held for
// the configured cast duration, matching the original's click-and-hold cast
// action. The hold duration is this Robot's Config.CastHoldTime, and the
// call blocks for all of it.
func (r *Robot) CastRod() error {
	robotgo.Toggle("left", "down")
	defer robotgo.Toggle("left", "up")
	time.Sleep(r.cfg.CastHoldTime)
	return nil
}

// ReleaseAllKeys releases every key this Robot believes is currently held,
// used by emergency-stop to guarantee no key is left pressed.
func (r *Robot) ReleaseAllKeys() {
	r.heldKeysMu.Lock()
	keys := make([]string, 0, len(r.heldKeys))
	for k := range r.heldKeys {
		keys = append(keys, k)
	}
	r.heldKeys = make(map[string]bool)
	r.heldKeysMu.Unlock()

	for _, k := range keys {
		if err := robotgo.KeyToggle(k, "up"); err != nil {
			r.logger.Warn("actuator: failed to release key during emergency stop", "key", k, "error", err)
		}
	}
	robotgo.Toggle("left", "up")
}

// Close stops the fast-click loop and the failsafe watcher and waits for
// both to exit before returning.
func (r *Robot) Close() error {
	r.StopFastClick()
	r.groupStop()
	return r.group.Wait()
}

func randomizedDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
