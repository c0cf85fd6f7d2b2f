package fishing

import "time"

// Config tunes the controller's timing and retry behavior. Most fields
// mirror one of the configuration keys in §6 (FastPollInterval,
// InitialBackoff, ConfirmPressTime and the retry settling pauses have no
// key of their own there); thresholds live in the
// detector facade's own config instead, since the controller never compares
// a confidence value itself.
type Config struct {
	// PollInterval is the detect-loop cadence for WAITING_INITIAL,
	// WAITING_HOOK, PULLING_NORMAL, PULLING_HALFWAY and SUCCESS.
	PollInterval time.Duration
	// FastPollInterval is the shorter cadence used in FISH_HOOKED, where
	// the hook window is brief.
	FastPollInterval time.Duration
	// InitialBackoff multiplies PollInterval while WAITING_INITIAL is
	// waiting for a bite, the idle-backoff behavior the original fishing
	// controller applies before a fish is even on the line. A value <= 1
	// disables the backoff and WAITING_INITIAL polls at PollInterval like
	// every other phase.
	InitialBackoff int
	// InitialTimeout bounds WAITING_INITIAL before it becomes ERROR.
	InitialTimeout time.Duration
	// State1Timeout bounds FISH_HOOKED before the retry branch triggers.
	State1Timeout time.Duration
	// State3PauseTime is how long PULLING_HALFWAY pauses the fast-click
	// loop on entry before resuming it.
	State3PauseTime time.Duration
	// SuccessWaitTime is the pause before SUCCESS presses the confirm key.
	SuccessWaitTime time.Duration
	// SuccessMaxAttempts bounds SUCCESS's inner confirmation loop.
	SuccessMaxAttempts int
	// KeyPressTime is how long a direction key (D/A) is held.
	KeyPressTime time.Duration
	// ConfirmPressTime is how long the SUCCESS phase's confirm key (F) is
	// held; this is a tap, not a directional hold, so it defaults short.
	ConfirmPressTime time.Duration
	// RetrySettleBefore/RetrySettleAfter are the settling pauses around the
	// remedial cast in the retry branch (§4.8).
	RetrySettleBefore time.Duration
	RetrySettleAfter  time.Duration
}

// DefaultConfig matches the defaults named in §6.
func DefaultConfig() Config {
	return Config{
		PollInterval:       100 * time.Millisecond,
		FastPollInterval:   50 * time.Millisecond,
		InitialBackoff:     3,
		InitialTimeout:     180 * time.Second,
		State1Timeout:      3 * time.Second,
		State3PauseTime:    time.Second,
		SuccessWaitTime:    1500 * time.Millisecond,
		SuccessMaxAttempts: 20,
		KeyPressTime:       time.Second,
		ConfirmPressTime:   50 * time.Millisecond,
		RetrySettleBefore:  500 * time.Millisecond,
		RetrySettleAfter:   time.Second,
	}
}
