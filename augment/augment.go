// Package augment - Image augmentations that keep YOLO boxes in step with the pixels.
package augment

import (
	"image"
	"math/rand/v2"

	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/images"
	"github.com/nvr-ai/yolo-overlay/labels"
	"github.com/pkg/errors"
)

// boundsTolerance absorbs float noise from the %.6f label format when checking that box
// corners lie inside the image.
const boundsTolerance = 1e-6

// Sample is an image with its annotations. Boxes are normalized center-form and
// ClassIDs[i] labels Boxes[i].
type Sample struct {
	Image    *image.NRGBA
	Boxes    []boxspace.Box
	ClassIDs []int
}

// NewSample pairs an image with label records.
func NewSample(img image.Image, records []labels.Record) Sample {
	s := Sample{
		Image:    images.ToNRGBA(img),
		Boxes:    make([]boxspace.Box, len(records)),
		ClassIDs: make([]int, len(records)),
	}
	for i, r := range records {
		s.Boxes[i] = r.Box.ToCenter()
		s.ClassIDs[i] = r.ClassID
	}
	return s
}

// Records returns the annotations as label records.
func (s Sample) Records() []labels.Record {
	records := make([]labels.Record, len(s.Boxes))
	for i, b := range s.Boxes {
		records[i] = labels.Record{ClassID: s.ClassIDs[i], Box: b.ToCenter()}
	}
	return records
}

// Frame returns the pixel size of the sample image.
func (s Sample) Frame() boxspace.Size {
	return boxspace.NewSize(s.Image.Bounds().Dx(), s.Image.Bounds().Dy())
}

// Validate checks the sample can be augmented: one class id per box, and every box a
// valid normalized box whose corners lie inside the image.
func (s Sample) Validate() error {
	if s.Image == nil {
		return errors.New("sample has no image")
	}
	if len(s.Boxes) != len(s.ClassIDs) {
		return errors.Errorf("%d boxes but %d class ids", len(s.Boxes), len(s.ClassIDs))
	}
	for i, b := range s.Boxes {
		if b.Domain != boxspace.Normalized {
			return errors.Wrapf(boxspace.ErrDomainMismatch, "box %d is %s", i, b.Domain)
		}
		if err := b.Validate(); err != nil {
			return errors.Wrapf(err, "box %d", i)
		}
		if err := boxspace.GroundTruth(s.ClassIDs[i]).Validate(); err != nil {
			return errors.Wrapf(err, "box %d", i)
		}
		x1, y1, x2, y2 := b.Corners()
		for _, v := range []float64{x1, y1, x2, y2} {
			if v < -boundsTolerance || v > 1+boundsTolerance {
				return errors.Wrapf(boxspace.ErrInvalidBox, "box %d %v lies outside the image", i, b)
			}
		}
	}
	return nil
}

// clipBoxes clips every box to the image and drops degenerate results together with
// their class ids.
func (s Sample) clipBoxes() Sample {
	boxes := make([]boxspace.Box, 0, len(s.Boxes))
	ids := make([]int, 0, len(s.ClassIDs))
	for i, b := range s.Boxes {
		// Clip in corner form so a box hanging off an edge keeps its visible part.
		clipped := boxspace.Clip(b.ToCorner(), boxspace.Size{})
		if clipped.Degenerate() {
			continue
		}
		boxes = append(boxes, clipped.ToCenter())
		ids = append(ids, s.ClassIDs[i])
	}
	s.Boxes, s.ClassIDs = boxes, ids
	return s
}

// Transform perturbs a sample. Implementations return new images and boxes and never
// modify the input sample.
type Transform interface {
	Name() string
	Apply(rng *rand.Rand, s Sample) (Sample, error)
}

// Step is a transform applied with probability P.
type Step struct {
	Transform Transform
	P         float64
}

// Compose applies its steps in order.
type Compose struct {
	Steps []Step
}

// Apply validates the sample and runs every step whose probability fires. Boxes are
// clipped after each step and degenerate boxes are dropped with their class ids.
//
// Arguments:
//   - rng: Random source for step selection and transform parameters.
//   - s: The input sample. It is not modified.
//
// Returns:
//   - Sample: The augmented sample.
//   - error: Validation errors for the input sample, or the first transform error.
func (c Compose) Apply(rng *rand.Rand, s Sample) (Sample, error) {
	if err := s.Validate(); err != nil {
		return Sample{}, err
	}
	out := s.clipBoxes()
	for _, step := range c.Steps {
		if rng.Float64() >= step.P {
			continue
		}
		next, err := step.Transform.Apply(rng, out)
		if err != nil {
			return Sample{}, errors.Wrap(err, step.Transform.Name())
		}
		out = next.clipBoxes()
	}
	return out, nil
}

// Default returns the dataset augmentation pipeline: horizontal flip, vertical flip,
// brightness and contrast, shift-scale-rotate and hue-saturation-value jitter.
func Default() Compose {
	return Compose{Steps: []Step{
		{Transform: HorizontalFlip{}, P: 0.5},
		{Transform: VerticalFlip{}, P: 0.2},
		{Transform: BrightnessContrast{BrightnessLimit: 0.2, ContrastLimit: 0.2}, P: 0.5},
		{Transform: ShiftScaleRotate{ShiftLimit: 0.1, ScaleLimit: 0.1, RotateLimit: 15}, P: 0.7},
		{Transform: HueSaturationValue{HueShift: 20, SatShift: 30, ValShift: 20}, P: 0.5},
	}}
}

// uniform returns a value in [-limit, limit).
func uniform(rng *rand.Rand, limit float64) float64 {
	return (rng.Float64()*2 - 1) * limit
}
