package fishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// errStopRequested unwinds the main loop to STOPPED. It is never surfaced
// outside this package — Stop and EmergencyStop both resolve to a clean
// STOPPED phase, not a visible error.
var errStopRequested = errors.New("fishing: stop requested")

// subscription is the controller's own lightweight status fan-out, kept
// separate from any status-channel package so this package stays free of
// dependencies: it tracks only what the controller itself needs in order to
// satisfy the subscribe_status/snapshot_status commands in §6. Wiring a UI
// to the richer drop-oldest broadcast with HTTP/WebSocket fan-out is the
// status package's job; this is just the controller's own bookkeeping.
type subscription struct {
	pending chan Status
	done    chan struct{}
}

// Controller is the fishing state machine from §4.5-4.9: it owns the single
// main control thread, dispatches phase transitions through the
// AllowedLabelSet table, and publishes a Status snapshot on every phase
// change and every accepted observation.
type Controller struct {
	detector  Detector
	actuator  Actuator
	publisher Publisher
	logger    *slog.Logger
	cfg       Config

	mu       sync.Mutex
	phase    Phase
	status   Status
	running  bool
	paused   bool
	resumeCh chan struct{}
	stopCh   chan struct{}
	emergCh  chan struct{}
	doneCh   chan struct{}

	subMu     sync.Mutex
	subs      map[uint64]*subscription
	nextSubID uint64
}

// New builds a Controller in the STOPPED phase. publisher may be nil, in
// which case snapshots are still tracked internally but never fanned out
// externally.
func New(detector Detector, actuator Actuator, publisher Publisher, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Controller{
		detector:  detector,
		actuator:  actuator,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		phase:     Stopped,
		status:    Status{Phase: Stopped, Diagnostics: Diagnostics{DroppedByLabel: map[DetectedLabel]uint64{}}, UpdatedAt: time.Now()},
		subs:      make(map[uint64]*subscription),
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(Status) {}

// Start transitions STOPPED -> WAITING_INITIAL and launches the main loop
// goroutine. Calling Start while already running is a no-op and returns
// errAlreadyRunning via errors.Is, not a user-visible failure. A classifier,
// text, or capture initialization failure is surfaced as ErrInitFault and
// leaves the controller in STOPPED.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errAlreadyRunning
	}
	c.mu.Unlock()

	ctx := context.Background()
	if err := c.detector.Init(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrInitFault, err)
	}

	c.mu.Lock()
	c.running = true
	c.paused = false
	c.resumeCh = nil
	c.phase = WaitingInitial
	c.status = Status{
		Phase:       WaitingInitial,
		RoundCount:  c.status.RoundCount,
		Diagnostics: Diagnostics{DroppedByLabel: map[DetectedLabel]uint64{}},
		UpdatedAt:   time.Now(),
	}
	c.stopCh = make(chan struct{})
	c.emergCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	snapshot := c.status
	c.mu.Unlock()

	c.publisher.Publish(snapshot)
	c.dispatchStatus(snapshot)

	go c.runLoop(ctx)
	return nil
}

// Stop requests cooperative termination. The main loop observes this at its
// next suspension point, tears down the actuator, sets phase to STOPPED,
// and this call blocks until that has happened.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	closeOnce(stopCh)
	<-doneCh
}

// EmergencyStop behaves like Stop but additionally forces immediate release
// of all inputs before the loop observes termination — it overrides the
// atomicity guarantee that lets a normal Stop wait out an in-flight cast.
func (c *Controller) EmergencyStop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	emergCh, stopCh, doneCh := c.emergCh, c.stopCh, c.doneCh
	c.mu.Unlock()

	c.actuator.StopFastClick()
	c.actuator.ReleaseAllKeys()
	closeOnce(emergCh)
	closeOnce(stopCh)
	<-doneCh
}

// Pause halts the actuator without losing phase or round_count — distinct
// from Stop, which tears the whole run down. The main loop observes it at
// its next suspension point (the same gate pattern as the
// hotkey-triggered stop/emergency channels) and blocks there until Resume.
func (c *Controller) Pause() {
	c.mu.Lock()
	if !c.running || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.resumeCh = make(chan struct{})
	c.status.Paused = true
	snapshot := cloneStatus(c.status)
	c.mu.Unlock()

	c.actuator.StopFastClick()
	c.publisher.Publish(snapshot)
	c.dispatchStatus(snapshot)
}

// Resume releases a Pause gate and lets the main loop continue from exactly
// the phase it was paused in, restarting the fast-click loop that Pause
// stopped when that phase is FISH_HOOKED or PULLING_NORMAL.
func (c *Controller) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	ch := c.resumeCh
	c.resumeCh = nil
	c.status.Paused = c.phase == PullingHalfway
	phase := c.phase
	snapshot := cloneStatus(c.status)
	c.mu.Unlock()

	close(ch)
	if phase == FishHooked || phase == PullingNormal {
		c.actuator.StartFastClick()
	}
	c.publisher.Publish(snapshot)
	c.dispatchStatus(snapshot)
}

// waitWhilePaused blocks at a suspension point while a Pause is in effect,
// returning errStopRequested if Stop/EmergencyStop fires first.
func (c *Controller) waitWhilePaused() error {
	for {
		c.mu.Lock()
		if !c.paused {
			c.mu.Unlock()
			return nil
		}
		resumeCh, stopCh := c.resumeCh, c.stopCh
		c.mu.Unlock()

		select {
		case <-resumeCh:
			continue
		case <-stopCh:
			return errStopRequested
		}
	}
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// SnapshotStatus returns the most recently published Status.
func (c *Controller) SnapshotStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneStatus(c.status)
}

// SubscribeStatus registers callback to run, off the control thread, on
// every published update; a slow subscriber has its oldest pending update
// replaced rather than blocking the controller. Returns a handle for
// UnsubscribeStatus.
func (c *Controller) SubscribeStatus(callback func(Status)) uint64 {
	sub := &subscription{pending: make(chan Status, 1), done: make(chan struct{})}

	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subs[id] = sub
	c.subMu.Unlock()

	go func() {
		for {
			select {
			case s := <-sub.pending:
				callback(s)
			case <-sub.done:
				return
			}
		}
	}()

	return id
}

// UnsubscribeStatus stops delivery for a handle returned by SubscribeStatus.
func (c *Controller) UnsubscribeStatus(handle uint64) {
	c.subMu.Lock()
	sub, ok := c.subs[handle]
	if ok {
		delete(c.subs, handle)
	}
	c.subMu.Unlock()
	if ok {
		close(sub.done)
	}
}

func (c *Controller) dispatchStatus(s Status) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub.pending <- s:
		default:
			select {
			case <-sub.pending:
			default:
			}
			select {
			case sub.pending <- s:
			default:
			}
		}
	}
}

func cloneStatus(s Status) Status {
	out := s
	out.Diagnostics = s.Diagnostics.clone()
	if s.LastDetectedLabel != nil {
		l := *s.LastDetectedLabel
		out.LastDetectedLabel = &l
	}
	if s.LastConfidence != nil {
		v := *s.LastConfidence
		out.LastConfidence = &v
	}
	return out
}

// isStopRequested reports whether Stop or EmergencyStop has been called
// since the current run started.
func (c *Controller) isStopRequested() bool {
	c.mu.Lock()
	stopCh := c.stopCh
	c.mu.Unlock()
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// sleepAbortable sleeps for d, returning errStopRequested early if Stop or
// EmergencyStop fires during the sleep. Used at every timed suspension
// point that is not the cast hold itself.
func (c *Controller) sleepAbortable(d time.Duration) error {
	if err := c.waitWhilePaused(); err != nil {
		return err
	}
	if d <= 0 {
		if c.isStopRequested() {
			return errStopRequested
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	c.mu.Lock()
	stopCh, emergCh := c.stopCh, c.emergCh
	c.mu.Unlock()
	select {
	case <-timer.C:
		return nil
	case <-stopCh:
		return errStopRequested
	case <-emergCh:
		return errStopRequested
	}
}

// recordDropped increments the diagnostics counter for a label that was
// observed but was not in the current phase's AllowedLabelSet. It never
// feeds back into a transition decision.
func (c *Controller) recordDropped(label DetectedLabel) {
	c.mu.Lock()
	c.status.Diagnostics.DroppedByLabel[label]++
	c.mu.Unlock()
}

// publish stores the new phase/observation into the status record under the
// status lock, clears last_detected_label/last_confidence outside the
// perception-driven phase set, and fans the snapshot out.
func (c *Controller) publish(phase Phase, obs *Observation) {
	c.mu.Lock()
	c.phase = phase
	c.status.Phase = phase
	c.status.Paused = c.paused || phase == PullingHalfway
	if obs != nil && showsLastLabel(phase) {
		label := obs.Label
		conf := obs.Confidence
		c.status.LastDetectedLabel = &label
		c.status.LastConfidence = &conf
	}
	if !showsLastLabel(phase) {
		c.status.LastDetectedLabel = nil
		c.status.LastConfidence = nil
	}
	c.status.UpdatedAt = time.Now()
	snapshot := cloneStatus(c.status)
	c.mu.Unlock()

	c.publisher.Publish(snapshot)
	c.dispatchStatus(snapshot)
}

func (c *Controller) publishError(err error) {
	c.mu.Lock()
	c.phase = Error
	c.status.Phase = Error
	c.paused = false
	c.status.Paused = false
	c.status.LastDetectedLabel = nil
	c.status.LastConfidence = nil
	c.status.LastError = err.Error()
	c.status.UpdatedAt = time.Now()
	snapshot := cloneStatus(c.status)
	c.mu.Unlock()

	c.publisher.Publish(snapshot)
	c.dispatchStatus(snapshot)
}

func (c *Controller) finishStop() {
	c.actuator.StopFastClick()
	c.actuator.ReleaseAllKeys()

	c.mu.Lock()
	c.running = false
	c.phase = Stopped
	c.paused = false
	c.status.Phase = Stopped
	c.status.Paused = false
	c.status.LastDetectedLabel = nil
	c.status.LastConfidence = nil
	c.status.UpdatedAt = time.Now()
	snapshot := cloneStatus(c.status)
	doneCh := c.doneCh
	c.mu.Unlock()

	c.publisher.Publish(snapshot)
	c.dispatchStatus(snapshot)
	close(doneCh)
}

func (c *Controller) incrementRoundCount() {
	c.mu.Lock()
	c.status.RoundCount++
	c.mu.Unlock()
}

// pollUntil runs detect_any against phase's AllowedLabelSet at interval
// cadence until it gets an accepted observation, the deadline (if non-zero)
// elapses, or Stop/EmergencyStop fires. Observations outside the allowed set
// are dropped to diagnostics and polling continues — the facade is not
// expected to return one, since the allow-list is passed to it, but this
// guards against a misbehaving implementation.
func (c *Controller) pollUntil(ctx context.Context, phase Phase, interval time.Duration, deadline time.Time) (Observation, error) {
	allowed := AllowedLabels(phase)
	for {
		if err := c.waitWhilePaused(); err != nil {
			return Observation{}, err
		}
		if c.isStopRequested() {
			return Observation{}, errStopRequested
		}

		remaining := interval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return Observation{}, ErrPerceptionTimeout
			}
			if left < remaining {
				remaining = left
			}
		}

		obs, ok, err := c.detector.DetectAny(ctx, allowed, remaining)
		if err != nil {
			return Observation{}, fmt.Errorf("%w: %v", ErrActuatorFault, err)
		}
		if !ok {
			continue
		}
		if !AllowedLabelSet(phase, obs.Label) {
			c.recordDropped(obs.Label)
			continue
		}
		return obs, nil
	}
}

// runLoop is the main control thread: it dispatches phase handlers in order,
// each returning the next phase or an error, until the controller is asked
// to stop or a failure forces ERROR.
func (c *Controller) runLoop(ctx context.Context) {
	phase := WaitingInitial
	for {
		var next Phase
		var err error

		switch phase {
		case WaitingInitial:
			next, err = c.runWaitingInitial(ctx)
		case WaitingHook:
			next, err = c.runWaitingHook(ctx)
		case FishHooked:
			next, err = c.runFishHooked(ctx)
		case PullingNormal, PullingHalfway:
			next, err = c.runPulling(ctx, phase)
		case Success:
			next, err = c.runSuccess(ctx)
		case Casting:
			next, err = c.runCasting(ctx)
		default:
			err = fmt.Errorf("fishing: unreachable phase %s in main loop", phase)
		}

		if err != nil {
			if errors.Is(err, errStopRequested) {
				c.finishStop()
				return
			}
			c.actuator.StopFastClick()
			c.publishError(err)
			c.mu.Lock()
			c.running = false
			doneCh := c.doneCh
			c.mu.Unlock()
			close(doneCh)
			return
		}

		// Every handler return is a phase change; publish it immediately on
		// entry rather than waiting for that phase's first observation, so
		// an observer never sees a stale phase during e.g. a pause.
		if next != phase {
			c.publish(next, nil)
		}
		phase = next
	}
}

func (c *Controller) runWaitingInitial(ctx context.Context) (Phase, error) {
	deadline := time.Now().Add(c.cfg.InitialTimeout)
	interval := c.cfg.PollInterval
	if c.cfg.InitialBackoff > 1 {
		interval *= time.Duration(c.cfg.InitialBackoff)
	}
	for {
		obs, err := c.pollUntil(ctx, WaitingInitial, interval, deadline)
		if err != nil {
			if errors.Is(err, ErrPerceptionTimeout) {
				return 0, fmt.Errorf("%w: timeout waiting for initial state", ErrPerceptionTimeout)
			}
			return 0, err
		}
		c.publish(WaitingInitial, &obs)
		switch obs.Label {
		case LabelWaitingBite:
			return WaitingHook, nil
		case LabelFishHooked:
			return FishHooked, nil
		}
	}
}

func (c *Controller) runWaitingHook(ctx context.Context) (Phase, error) {
	for {
		obs, err := c.pollUntil(ctx, WaitingHook, c.cfg.PollInterval, time.Time{})
		if err != nil {
			return 0, err
		}
		c.publish(WaitingHook, &obs)
		if obs.Label == LabelFishHooked {
			return FishHooked, nil
		}
	}
}

func (c *Controller) runFishHooked(ctx context.Context) (Phase, error) {
	c.actuator.StartFastClick()

	deadline := time.Now().Add(c.cfg.State1Timeout)
	for {
		obs, err := c.pollUntil(ctx, FishHooked, c.cfg.FastPollInterval, deadline)
		if err != nil {
			if errors.Is(err, ErrPerceptionTimeout) {
				return c.retryBranch(ctx)
			}
			return 0, err
		}
		c.publish(FishHooked, &obs)
		switch obs.Label {
		case LabelStaminaBelow:
			return PullingNormal, nil
		case LabelStaminaAbove:
			return PullingHalfway, nil
		}
		// LabelFishHooked re-affirms the current phase; keep polling within
		// the same deadline.
	}
}

// retryBranch implements §4.8: a remedial cast when FISH_HOOKED never sees
// an allowed label within state1_timeout. It never increments round_count.
func (c *Controller) retryBranch(ctx context.Context) (Phase, error) {
	c.actuator.StopFastClick()
	c.actuator.ReleaseAllKeys()

	if err := c.sleepAbortable(c.cfg.RetrySettleBefore); err != nil {
		return 0, err
	}
	if err := c.actuator.CastRod(); err != nil {
		c.logger.Error("fishing: retry cast failed", slog.Any("error", err))
		return 0, ErrRetryCastFailed
	}
	if err := c.sleepAbortable(c.cfg.RetrySettleAfter); err != nil {
		return 0, err
	}
	return WaitingInitial, nil
}

func (c *Controller) runPulling(ctx context.Context, phase Phase) (Phase, error) {
	if phase == PullingNormal {
		c.actuator.StartFastClick()
		c.actuator.ResumeFastClick()
	} else {
		c.actuator.PauseFastClick()
		if err := c.sleepAbortable(c.cfg.State3PauseTime); err != nil {
			return 0, err
		}
		// Fast-click stays paused for the whole time phase remains
		// PULLING_HALFWAY (§3, §8) — it only resumes on the transition back
		// to PULLING_NORMAL above, not after this settle sleep.
	}

	for {
		obs, err := c.pollUntil(ctx, phase, c.cfg.PollInterval, time.Time{})
		if err != nil {
			return 0, err
		}
		c.publish(phase, &obs)

		switch obs.Label {
		case LabelCatchSuccess:
			return Success, nil
		case LabelPullRight:
			if err := c.actuator.HoldKey("D", c.cfg.KeyPressTime); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrActuatorFault, err)
			}
			continue
		case LabelPullLeft:
			if err := c.actuator.HoldKey("A", c.cfg.KeyPressTime); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrActuatorFault, err)
			}
			continue
		case LabelStaminaBelow:
			if phase == PullingHalfway {
				return PullingNormal, nil
			}
		case LabelStaminaAbove:
			if phase == PullingNormal {
				return PullingHalfway, nil
			}
		}
	}
}

func (c *Controller) runSuccess(ctx context.Context) (Phase, error) {
	// Fast-click runs only in FISH_HOOKED and PULLING_NORMAL; the catch ends it.
	c.actuator.StopFastClick()
	if err := c.sleepAbortable(c.cfg.SuccessWaitTime); err != nil {
		return 0, err
	}
	if err := c.actuator.HoldKey("F", c.cfg.ConfirmPressTime); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrActuatorFault, err)
	}

	allowed := AllowedLabels(Success)
	for attempt := 0; attempt < c.cfg.SuccessMaxAttempts; attempt++ {
		if err := c.waitWhilePaused(); err != nil {
			return 0, err
		}
		if c.isStopRequested() {
			return 0, errStopRequested
		}
		obs, ok, err := c.detector.DetectAny(ctx, allowed, c.cfg.PollInterval)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrActuatorFault, err)
		}
		if !ok {
			return Casting, nil
		}
		c.publish(Success, &obs)
	}
	return Casting, nil
}

func (c *Controller) runCasting(ctx context.Context) (Phase, error) {
	castErrCh := make(chan error, 1)
	go func() { castErrCh <- c.actuator.CastRod() }()

	c.mu.Lock()
	emergCh := c.emergCh
	c.mu.Unlock()

	select {
	case err := <-castErrCh:
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrActuatorFault, err)
		}
		c.incrementRoundCount()
		return WaitingInitial, nil
	case <-emergCh:
		c.actuator.ReleaseAllKeys()
		<-castErrCh
		return 0, errStopRequested
	}
}
