// Package text implements fishing.TextDetector using Tesseract OCR via
// gosseract, the same OCR binding this pack's stream-detection reference
// uses for matching fixed overlay text against captured frames.
package text

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/bailanluo/autofish/internal/fishing"
)

// keyword associates a recognized phrase with the label it signals. Entries
// are checked in order; the first case-insensitive substring match wins.
type keyword struct {
	label  fishing.DetectedLabel
	phrase string
}

var defaultKeywords = []keyword{
	{fishing.LabelPullRight, "pull right"},
	{fishing.LabelPullRight, "right"},
	{fishing.LabelPullLeft, "pull left"},
	{fishing.LabelPullLeft, "left"},
	{fishing.LabelCatchSuccess, "success"},
	{fishing.LabelCatchSuccess, "caught"},
}

// Detector wraps a single gosseract client. gosseract clients are not safe
// for concurrent use, so every call is serialized by mu — the detector
// facade only ever calls one detector at a time anyway (§4.1), but a
// dedicated lock makes that assumption explicit rather than implicit.
type Detector struct {
	mu       sync.Mutex
	client   *gosseract.Client
	keywords []keyword
}

// New creates a text Detector configured for the given OCR language (an
// empty string defaults to "eng").
func New(language string) (*Detector, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("text: set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("text: set page segmentation mode: %w", err)
	}
	return &Detector{client: client, keywords: defaultKeywords}, nil
}

// Close releases the underlying Tesseract engine.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client.Close()
}

// Read recognizes text in frame and maps it to one of labels {4,5,6}. The
// reported confidence is the mean word-level confidence from Tesseract,
// normalized from its native 0-100 scale to [0,1] by the caller if needed —
// the detector facade compares it against text_threshold on the 0-100 scale
// directly, per §6, so Read reports it unnormalized here.
func (d *Detector) Read(frame fishing.Frame) (fishing.DetectedLabel, float64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, toImage(frame)); err != nil {
		return 0, 0, false, fmt.Errorf("text: encode frame: %w", err)
	}
	if err := d.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return 0, 0, false, fmt.Errorf("text: load frame: %w", err)
	}

	out, err := d.client.Text()
	if err != nil {
		return 0, 0, false, fmt.Errorf("text: recognize: %w", err)
	}

	boxes, err := d.client.GetBoundingBoxesVerbose()
	if err != nil {
		return 0, 0, false, fmt.Errorf("text: bounding boxes: %w", err)
	}

	lower := strings.ToLower(out)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw.phrase) {
			return kw.label, meanConfidence(boxes), true, nil
		}
	}
	return 0, 0, false, nil
}

func meanConfidence(boxes gosseract.BoundingBoxes) float64 {
	if len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}

func toImage(frame fishing.Frame) image.Image {
	return frame
}
