package fishing

import "errors"

// Sentinel errors identifying the failure kinds from the error handling
// design. Callers distinguish them with errors.Is.
var (
	// ErrPerceptionTimeout means no allowed label arrived within a phase's
	// deadline. In FISH_HOOKED this is routed to the retry branch; in every
	// other phase it becomes ERROR.
	ErrPerceptionTimeout = errors.New("fishing: perception timeout")

	// ErrActuatorFault means a start/stop/hold call on the actuator failed.
	ErrActuatorFault = errors.New("fishing: actuator fault")

	// ErrInitFault means the classifier, text detector, or capture source
	// could not be brought up. Surfaced from Start(); phase stays STOPPED.
	ErrInitFault = errors.New("fishing: init fault")

	// ErrRetryCastFailed is returned when the remedial cast in the retry
	// branch fails; the controller transitions to ERROR with this as the
	// last error text.
	ErrRetryCastFailed = errors.New("retry cast failed")

	// errAlreadyRunning is returned by Start when it is called while the
	// main loop is still running (a controller in ERROR or STOPPED can be
	// started again); Start treats this as a no-op, not a user-visible
	// failure.
	errAlreadyRunning = errors.New("fishing: already running")
)
