package facade

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/bailanluo/autofish/internal/fishing"
)

type fakeCapture struct {
	frame fishing.Frame
	err   error
	grabs int
}

func (f *fakeCapture) Grab() (fishing.Frame, error) {
	f.grabs++
	if f.err != nil {
		return nil, f.err
	}
	return f.frame, nil
}

func (f *fakeCapture) Close() error { return nil }

type fakeClassifier struct {
	label fishing.DetectedLabel
	conf  float64
	ok    bool
	err   error
	calls int
}

func (c *fakeClassifier) Classify(frame fishing.Frame) (fishing.DetectedLabel, float64, bool, error) {
	c.calls++
	return c.label, c.conf, c.ok, c.err
}

type fakeText struct {
	label fishing.DetectedLabel
	conf  float64
	ok    bool
	err   error
	calls int
}

func (t *fakeText) Read(frame fishing.Frame) (fishing.DetectedLabel, float64, bool, error) {
	t.calls++
	return t.label, t.conf, t.ok, t.err
}

func blankFrame() fishing.Frame {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func TestDetectAnyPrefersClassifierWhenAllowedAndConfident(t *testing.T) {
	cap := &fakeCapture{frame: blankFrame()}
	cls := &fakeClassifier{label: fishing.LabelFishHooked, conf: 0.9, ok: true}
	txt := &fakeText{label: fishing.LabelPullRight, conf: 90, ok: true}
	f := New(DefaultConfig(), cap, cls, txt, nil)

	allowed := map[fishing.DetectedLabel]bool{fishing.LabelFishHooked: true, fishing.LabelPullRight: true}
	obs, ok, err := f.DetectAny(context.Background(), allowed, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a detection")
	}
	if obs.Source != fishing.SourceClassifier || obs.Label != fishing.LabelFishHooked {
		t.Fatalf("expected classifier result, got %+v", obs)
	}
	if txt.calls != 0 {
		t.Fatalf("text detector should not run when classifier already satisfied the call, got %d calls", txt.calls)
	}
}

func TestDetectAnyFallsBackToTextWhenClassifierNotAllowed(t *testing.T) {
	cap := &fakeCapture{frame: blankFrame()}
	cls := &fakeClassifier{label: fishing.LabelWaitingBite, conf: 0.9, ok: true}
	txt := &fakeText{label: fishing.LabelPullRight, conf: 80, ok: true}
	f := New(DefaultConfig(), cap, cls, txt, nil)

	allowed := map[fishing.DetectedLabel]bool{fishing.LabelPullRight: true}
	obs, ok, err := f.DetectAny(context.Background(), allowed, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a detection")
	}
	if obs.Source != fishing.SourceText || obs.Label != fishing.LabelPullRight {
		t.Fatalf("expected text result, got %+v", obs)
	}
}

func TestDetectAnyRejectsBelowThreshold(t *testing.T) {
	cap := &fakeCapture{frame: blankFrame()}
	cls := &fakeClassifier{label: fishing.LabelFishHooked, conf: 0.1, ok: true}
	txt := &fakeText{label: fishing.LabelFishHooked, conf: 5, ok: true}
	f := New(DefaultConfig(), cap, cls, txt, nil)

	allowed := map[fishing.DetectedLabel]bool{fishing.LabelFishHooked: true}
	_, ok, err := f.DetectAny(context.Background(), allowed, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no detection below both thresholds")
	}
}

func TestDetectAnyPropagatesCaptureError(t *testing.T) {
	cap := &fakeCapture{err: errors.New("boom")}
	f := New(DefaultConfig(), cap, &fakeClassifier{}, &fakeText{}, nil)
	_, _, err := f.DetectAny(context.Background(), nil, time.Second)
	if err == nil {
		t.Fatalf("expected capture error to propagate")
	}
}

func TestDetectAnyRateLimitsTextPolls(t *testing.T) {
	cap := &fakeCapture{frame: blankFrame()}
	cls := &fakeClassifier{label: fishing.LabelWaitingBite, conf: 0.9, ok: true}
	txt := &fakeText{label: fishing.LabelPullRight, conf: 90, ok: true}
	cfg := DefaultConfig()
	cfg.TextInterval = 50 * time.Millisecond
	f := New(cfg, cap, cls, txt, nil)

	allowed := map[fishing.DetectedLabel]bool{fishing.LabelPullRight: true}

	if _, ok, err := f.DetectAny(context.Background(), allowed, time.Second); err != nil || !ok {
		t.Fatalf("expected first call to read text, ok=%v err=%v", ok, err)
	}
	if txt.calls != 1 {
		t.Fatalf("expected exactly one text read on the first call, got %d", txt.calls)
	}

	// Immediately polling again is within TextInterval: the text detector
	// must not be invoked a second time.
	if _, ok, _ := f.DetectAny(context.Background(), allowed, time.Second); ok {
		t.Fatalf("expected the rate-limited call to find nothing")
	}
	if txt.calls != 1 {
		t.Fatalf("expected text detector not to be polled again within TextInterval, got %d calls", txt.calls)
	}

	time.Sleep(cfg.TextInterval * 2)

	if _, ok, err := f.DetectAny(context.Background(), allowed, time.Second); err != nil || !ok {
		t.Fatalf("expected a read once TextInterval has elapsed, ok=%v err=%v", ok, err)
	}
	if txt.calls != 2 {
		t.Fatalf("expected a second text read after TextInterval elapsed, got %d", txt.calls)
	}
}

func TestDetectSpecificNarrowsAllowList(t *testing.T) {
	cap := &fakeCapture{frame: blankFrame()}
	cls := &fakeClassifier{label: fishing.LabelCatchSuccess, conf: 0.95, ok: true}
	f := New(DefaultConfig(), cap, cls, &fakeText{}, nil)

	obs, ok, err := f.DetectSpecific(context.Background(), fishing.LabelCatchSuccess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || obs.Label != fishing.LabelCatchSuccess {
		t.Fatalf("expected LabelCatchSuccess, got %+v ok=%v", obs, ok)
	}
}
