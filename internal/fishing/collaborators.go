package fishing

import (
	"context"
	"image"
	"time"
)

// Frame is a captured screenshot. The classifier, text detector and capture
// source all operate on this representation; none of them, nor the
// controller, care how the pixels got there.
type Frame = *image.RGBA

// Capture delivers a current frame on demand. Implementations must be safe
// to construct and use from a single goroutine; the controller never shares
// one Capture across threads (see the per-thread capture note in the design).
type Capture interface {
	Grab() (Frame, error)
	Close() error
}

// Classifier returns zero or one of labels {0,1,2,3,6} with a confidence, or
// ok=false if nothing was recognized above the model's own internal floor.
// Model architecture, weights, and preprocessing are outside this module's
// concern; this is the seam.
type Classifier interface {
	Classify(frame Frame) (label DetectedLabel, confidence float64, ok bool, err error)
}

// TextDetector returns one of labels {4,5,6} with a confidence on a 0-100
// scale, or ok=false if no matching text was read.
type TextDetector interface {
	Read(frame Frame) (label DetectedLabel, confidence float64, ok bool, err error)
}

// Detector is the facade the controller actually talks to (§4.1). It hides
// the classifier/text tie-break so the controller never calls either
// perception collaborator directly.
type Detector interface {
	// Init brings up the underlying classifier, text detector and capture
	// source. Start() calls this once before entering WAITING_INITIAL; a
	// failure here is an InitFault and leaves the controller in STOPPED.
	Init(ctx context.Context) error
	// DetectAny runs the classifier then, if needed, the text detector,
	// filtered to allowed, and never blocks past deadline.
	DetectAny(ctx context.Context, allowed map[DetectedLabel]bool, deadline time.Duration) (Observation, bool, error)
	// DetectSpecific checks persistence/disappearance of a single label.
	DetectSpecific(ctx context.Context, label DetectedLabel) (Observation, bool, error)
}

// Publisher is the status channel's write side: one writer (the controller),
// many readers. Implementations must never block the caller on a slow or
// absent reader.
type Publisher interface {
	Publish(Status)
}

// Actuator drives mouse and keyboard input on behalf of the controller. All
// methods must be safe to call from any goroutine; StartFastClick and
// StopFastClick are serialized with respect to each other by the
// implementation, not by the caller.
type Actuator interface {
	StartFastClick()
	PauseFastClick()
	ResumeFastClick()
	StopFastClick()
	HoldKey(key string, duration time.Duration) error
	CastRod() error
	ReleaseAllKeys()
}
