package actuator

import (
	"testing"
	"time"
)

func TestRandomizedDelayStaysInBounds(t *testing.T) {
	min, max := 54*time.Millisecond, 127*time.Millisecond
	for i := 0; i < 200; i++ {
		d := randomizedDelay(min, max)
		if d < min || d >= max {
			t.Fatalf("delay %v outside [%v, %v)", d, min, max)
		}
	}
}

func TestRandomizedDelayHandlesDegenerateRange(t *testing.T) {
	if got := randomizedDelay(50, 50); got != 50 {
		t.Fatalf("expected degenerate range to return min, got %v", got)
	}
	if got := randomizedDelay(100, 10); got != 100 {
		t.Fatalf("expected max<=min to return min, got %v", got)
	}
}

func TestStartPauseResumeStopLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailsafeEnabled = false
	cfg.ClickDelayMin = time.Millisecond
	cfg.ClickDelayMax = 2 * time.Millisecond
	r := New(cfg, nil, nil)
	defer r.Close()

	r.StartFastClick()
	r.mu.Lock()
	state := r.state
	r.mu.Unlock()
	if state != clickRunning {
		t.Fatalf("expected clickRunning after StartFastClick, got %v", state)
	}

	r.PauseFastClick()
	r.mu.Lock()
	state = r.state
	r.mu.Unlock()
	if state != clickPaused {
		t.Fatalf("expected clickPaused after PauseFastClick, got %v", state)
	}

	r.ResumeFastClick()
	r.mu.Lock()
	state = r.state
	r.mu.Unlock()
	if state != clickRunning {
		t.Fatalf("expected clickRunning after ResumeFastClick, got %v", state)
	}

	r.StopFastClick()
	r.mu.Lock()
	state = r.state
	r.mu.Unlock()
	if state != clickIdle {
		t.Fatalf("expected clickIdle after StopFastClick, got %v", state)
	}
}

func TestStartFastClickIsIdempotentWhileRunning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailsafeEnabled = false
	r := New(cfg, nil, nil)
	defer r.Close()

	r.StartFastClick()
	firstCancel := r.cancel
	r.StartFastClick()
	if r.cancel != firstCancel {
		t.Fatalf("StartFastClick while already running should be a no-op")
	}
}

func TestReleaseAllKeysClearsHeldSet(t *testing.T) {
	r := New(DefaultConfig(), nil, nil)
	r.heldKeys["w"] = true
	r.heldKeys["a"] = true
	r.ReleaseAllKeys()
	if len(r.heldKeys) != 0 {
		t.Fatalf("expected held key set to be cleared, got %v", r.heldKeys)
	}
}
