package classifier

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bailanluo/autofish/internal/fishing"
)

func writeTestPNG(t *testing.T, path string, fill color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, fill)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// writeSplitPNG writes a 4x4 image that is bright on one half and dark on
// the other: split left/right when vertical is true, top/bottom otherwise.
// NCC needs contrast, so a uniform image can never match.
func writeSplitPNG(t *testing.T, path string, vertical bool) {
	t.Helper()
	bright := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	dark := color.RGBA{R: 20, G: 20, B: 20, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := dark
			if (vertical && x < 2) || (!vertical && y < 2) {
				c = bright
			}
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestLoadTemplatesSkipsMissingLabels(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "waiting-for-bite.png"), color.RGBA{R: 10, G: 10, B: 10, A: 255})

	templates, err := LoadTemplates(dir)
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	if _, ok := templates[fishing.LabelWaitingBite]; !ok {
		t.Fatalf("expected waiting-for-bite template to load")
	}
	if _, ok := templates[fishing.LabelFishHooked]; ok {
		t.Fatalf("expected fish-hooked template to be absent when its file is missing")
	}
}

func TestClassifyPicksBestScoringLabel(t *testing.T) {
	dir := t.TempDir()
	writeSplitPNG(t, filepath.Join(dir, "waiting-for-bite.png"), true)
	writeSplitPNG(t, filepath.Join(dir, "fish-hooked.png"), false)

	templates, err := LoadTemplates(dir)
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	c := New(templates)

	// Top half bright, bottom half dark: the fish-hooked (top/bottom)
	// template matches exactly at row offset 2, the waiting-for-bite
	// (left/right) one does not correlate with any window.
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			shade := color.RGBA{R: 20, G: 20, B: 20, A: 255}
			if y < 4 {
				shade = color.RGBA{R: 200, G: 200, B: 200, A: 255}
			}
			frame.Set(x, y, shade)
		}
	}

	label, _, ok, err := c.Classify(frame)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}
	if label != fishing.LabelFishHooked {
		t.Fatalf("expected fish-hooked to win on a frame containing its pattern, got %v", label)
	}
}
