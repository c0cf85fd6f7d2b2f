// Package facade multiplexes a classifier and a text detector behind a
// single call that accepts an allow-list of labels and returns the first
// valid observation (§4.1). The controller never calls either perception
// collaborator directly; any cross-modality tie-breaking lives here.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bailanluo/autofish/internal/fishing"
)

// Config holds the confidence floors the facade enforces before accepting
// an observation from either collaborator, plus the text detector's own
// polling cadence.
type Config struct {
	// ClassifierThreshold is the minimum classifier confidence in [0,1].
	ClassifierThreshold float64
	// TextThreshold is the minimum text confidence on a 0-100 scale.
	TextThreshold float64
	// TextInterval is the minimum gap between text-detector reads (§6's
	// text_interval). Text runs as a same-call fallback behind the
	// classifier rather than on its own timer, so this isn't a second
	// poll loop — it's a floor under how often DetectAny is allowed to
	// invoke the (comparatively expensive) text detector when callers
	// poll faster than that, e.g. FISH_HOOKED's short cadence.
	TextInterval time.Duration
}

// DefaultConfig matches the configuration defaults in §6.
func DefaultConfig() Config {
	return Config{ClassifierThreshold: 0.5, TextThreshold: 60, TextInterval: 200 * time.Millisecond}
}

// Facade implements fishing.Detector.
type Facade struct {
	cfg        Config
	capture    fishing.Capture
	classifier fishing.Classifier
	text       fishing.TextDetector
	logger     *slog.Logger

	textMu     sync.Mutex
	lastTextAt time.Time
}

// New wires a classifier, a text detector and a capture source behind one
// fishing.Detector. capture is grabbed fresh on every call; the same frame
// is reused for both collaborators within a single DetectAny call so they
// never observe two different moments in time.
func New(cfg Config, capture fishing.Capture, classifier fishing.Classifier, text fishing.TextDetector, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{cfg: cfg, capture: capture, classifier: classifier, text: text, logger: logger}
}

// Init is a no-op here: the classifier, text detector and capture source
// passed to New are expected to already be constructed and ready. Real
// deployments that need lazy engine startup (loading model weights,
// starting a Tesseract process) do that in their own constructors and
// report the failure there, before the facade or the controller exists, so
// this method has nothing left to fail on.
func (f *Facade) Init(ctx context.Context) error {
	return nil
}

// DetectAny implements §4.1: classifier first (labels {0,1,2,3,6} change
// quickly and dominate timing), then text (labels {4,5} are direction
// overlays and tolerate the extra latency). Both calls are bounded by
// deadline; if the classifier already consumed the whole deadline, the text
// detector is skipped rather than overrunning it.
func (f *Facade) DetectAny(ctx context.Context, allowed map[fishing.DetectedLabel]bool, deadline time.Duration) (fishing.Observation, bool, error) {
	start := time.Now()
	budget := func() time.Duration {
		remaining := deadline - time.Since(start)
		if remaining < 0 {
			return 0
		}
		return remaining
	}

	frame, err := f.capture.Grab()
	if err != nil {
		return fishing.Observation{}, false, fmt.Errorf("facade: grab frame: %w", err)
	}

	if f.classifier != nil && budget() > 0 {
		label, conf, ok, err := f.classifier.Classify(frame)
		if err != nil {
			return fishing.Observation{}, false, fmt.Errorf("facade: classify: %w", err)
		}
		if ok && allowed[label] && conf >= f.cfg.ClassifierThreshold {
			return fishing.Observation{Label: label, Confidence: conf, Source: fishing.SourceClassifier}, true, nil
		}
	}

	if f.text != nil && budget() > 0 && f.dueForText() {
		label, conf, ok, err := f.text.Read(frame)
		if err != nil {
			return fishing.Observation{}, false, fmt.Errorf("facade: read text: %w", err)
		}
		if ok && allowed[label] && conf >= f.cfg.TextThreshold {
			return fishing.Observation{Label: label, Confidence: conf, Source: fishing.SourceText}, true, nil
		}
	}

	return fishing.Observation{}, false, nil
}

// dueForText reports whether at least TextInterval has passed since the
// text detector was last actually invoked, and records the call if so. A
// zero TextInterval disables the gate (every call is due).
func (f *Facade) dueForText() bool {
	if f.cfg.TextInterval <= 0 {
		return true
	}
	f.textMu.Lock()
	defer f.textMu.Unlock()
	now := time.Now()
	if now.Sub(f.lastTextAt) < f.cfg.TextInterval {
		return false
	}
	f.lastTextAt = now
	return true
}

// DetectSpecific checks persistence/disappearance of a single label: a
// convenience built on DetectAny with a single-label allow-list and a short
// fixed deadline, matching §4.1.
func (f *Facade) DetectSpecific(ctx context.Context, label fishing.DetectedLabel) (fishing.Observation, bool, error) {
	allowed := map[fishing.DetectedLabel]bool{label: true}
	return f.DetectAny(ctx, allowed, 200*time.Millisecond)
}
