// Package capture provides the screen capture source. Each goroutine that
// needs frames constructs its own Source; capture handles of this kind are
// well known to be thread-local in most platform screenshot backends, and
// rather than work around that with lazy reinitialization (as the original
// Python implementation does), a Source here is per-goroutine by
// construction (see the design notes on this point).
package capture

import (
	"fmt"
	"image"

	"github.com/vova616/screenshot"

	"github.com/bailanluo/autofish/internal/fishing"
)

// Source implements fishing.Capture by grabbing the whole active display on
// every call. It holds no handle across calls beyond what the underlying
// screenshot library itself caches, so it is safe to keep one instance per
// goroutine and never share it.
type Source struct {
	region image.Rectangle // zero value means "whole screen"
}

// New returns a capture source. If region is the zero Rectangle the source
// grabs the full screen on every call; otherwise it grabs only region.
func New(region image.Rectangle) *Source {
	return &Source{region: region}
}

// Grab returns a fresh frame.
func (s *Source) Grab() (fishing.Frame, error) {
	if s.region == (image.Rectangle{}) {
		img, err := screenshot.CaptureScreen()
		if err != nil {
			return nil, fmt.Errorf("capture: grab screen: %w", err)
		}
		return img, nil
	}
	img, err := screenshot.CaptureRect(s.region)
	if err != nil {
		return nil, fmt.Errorf("capture: grab region: %w", err)
	}
	return img, nil
}

// Close releases any resources held by the source. The current backend
// holds none, but the method exists so callers can defer it uniformly and
// so a future backend with a real handle doesn't need an interface change.
func (s *Source) Close() error {
	return nil
}
