package classifier

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/bailanluo/autofish/internal/fishing"
)

// classifierLabels are the only labels this collaborator is allowed to
// produce (§3): {0,1,2,3,6}.
var classifierLabels = []fishing.DetectedLabel{
	fishing.LabelWaitingBite,
	fishing.LabelFishHooked,
	fishing.LabelStaminaBelow,
	fishing.LabelStaminaAbove,
	fishing.LabelCatchSuccess,
}

// TemplateClassifier matches a small set of labeled reference images against
// the captured frame via normalized cross-correlation and reports the
// best-scoring label as the classification result.
type TemplateClassifier struct {
	templates map[fishing.DetectedLabel]*image.RGBA
}

// New builds a TemplateClassifier from a label->reference image mapping.
// Any label outside {0,1,2,3,6} is rejected by the caller before it ever
// reaches here; New does not re-validate that, it trusts its caller the way
// an internal adapter trusts its wiring.
func New(templates map[fishing.DetectedLabel]*image.RGBA) *TemplateClassifier {
	return &TemplateClassifier{templates: templates}
}

// Classify runs every configured template against frame and returns the
// best-scoring label among those whose NCC score is above -1 (so its mapped
// confidence is above 0). The caller — the detector facade — is responsible
// for applying the configured confidence threshold; Classify just reports
// what it saw, mapped into [0,1].
func (c *TemplateClassifier) Classify(frame fishing.Frame) (fishing.DetectedLabel, float64, bool, error) {
	var bestLabel fishing.DetectedLabel
	bestScore := -1.0
	found := false

	for _, label := range classifierLabels {
		tmpl, ok := c.templates[label]
		if !ok || tmpl == nil {
			continue
		}
		res := matchTemplateNCC(frame, tmpl)
		if !res.found {
			continue
		}
		if res.score > bestScore {
			bestScore = res.score
			bestLabel = label
			found = true
		}
	}

	if !found {
		return 0, 0, false, nil
	}
	// NCC scores range [-1, 1]; map to a [0,1] confidence the same way the
	// detector facade's classifier_threshold (default 0.5) expects.
	confidence := (bestScore + 1) / 2
	return bestLabel, confidence, true, nil
}

// labelFilenames maps each classifier label to the reference template file
// LoadTemplates expects to find under its template directory.
var labelFilenames = map[fishing.DetectedLabel]string{
	fishing.LabelWaitingBite:  "waiting-for-bite.png",
	fishing.LabelFishHooked:   "fish-hooked.png",
	fishing.LabelStaminaBelow: "stamina-below-half.png",
	fishing.LabelStaminaAbove: "stamina-above-half.png",
	fishing.LabelCatchSuccess: "catch-success.png",
}

// LoadTemplates reads one PNG reference image per classifier label from dir,
// named per labelFilenames. A label whose file is missing is simply left out
// of the returned map; Classify already treats an absent template as "this
// label is never matched."
func LoadTemplates(dir string) (map[fishing.DetectedLabel]*image.RGBA, error) {
	out := make(map[fishing.DetectedLabel]*image.RGBA, len(labelFilenames))
	for label, filename := range labelFilenames {
		path := filepath.Join(dir, filename)
		img, err := loadRGBA(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("classifier: load template %s: %w", path, err)
		}
		out[label] = img
	}
	return out, nil
}

func loadRGBA(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba, nil
}
