// Package classifier implements fishing.Classifier. The model architecture,
// weights, and preprocessing of a real trained classifier are explicitly out
// of scope for this module (see the purpose & scope notes) — what is in
// scope is the seam a trained model plugs into. TemplateClassifier is a
// template-matching stand-in for that seam, using normalized cross-
// correlation to match fixed UI glyphs against a captured frame; a
// production deployment swaps it for a real inference adapter behind the
// same interface.
package classifier

import (
	"image"
	"math"
)

// matchResult holds the outcome of one template match.
type matchResult struct {
	score float64
	found bool
}

// matchTemplateNCC performs grayscale normalized cross-correlation of tmpl
// against frame, scanning every integer offset. It returns the best score
// found anywhere in frame, regardless of threshold; callers decide what
// counts as a match.
func matchTemplateNCC(frame *image.RGBA, tmpl *image.RGBA) matchResult {
	if frame == nil || tmpl == nil {
		return matchResult{score: -1}
	}
	fb := frame.Bounds()
	tb := tmpl.Bounds()
	w, h := tb.Dx(), tb.Dy()
	W, H := fb.Dx(), fb.Dy()
	if w == 0 || h == 0 || W < w || H < h {
		return matchResult{score: -1}
	}

	tGray := make([]float64, w*h)
	var sumT, sumT2 float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := grayAt(tmpl, tb.Min.X+x, tb.Min.Y+y)
			tGray[y*w+x] = g
			sumT += g
			sumT2 += g * g
		}
	}
	meanT := sumT / float64(w*h)
	varT := sumT2/float64(w*h) - meanT*meanT
	if varT <= 0 {
		return matchResult{score: -1}
	}

	best := -1.0
	for oy := 0; oy <= H-h; oy++ {
		for ox := 0; ox <= W-w; ox++ {
			var sumF, sumF2, sumFT float64
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					f := grayAt(frame, fb.Min.X+ox+x, fb.Min.Y+oy+y)
					sumF += f
					sumF2 += f * f
					sumFT += f * tGray[y*w+x]
				}
			}
			n := float64(w * h)
			meanF := sumF / n
			varF := sumF2/n - meanF*meanF
			if varF <= 0 {
				continue
			}
			cov := sumFT/n - meanF*meanT
			score := cov / math.Sqrt(varF*varT)
			if score > best {
				best = score
			}
		}
	}
	return matchResult{score: best, found: best > -1}
}

func grayAt(img *image.RGBA, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}
