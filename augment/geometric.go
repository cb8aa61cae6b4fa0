package augment

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/yolo-overlay/boxspace"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// HorizontalFlip mirrors the image left to right.
type HorizontalFlip struct{}

// Name implements Transform.
func (HorizontalFlip) Name() string { return "horizontal_flip" }

// Apply implements Transform.
func (HorizontalFlip) Apply(_ *rand.Rand, s Sample) (Sample, error) {
	out := Sample{Image: imaging.FlipH(s.Image), Boxes: make([]boxspace.Box, len(s.Boxes)), ClassIDs: s.ClassIDs}
	for i, b := range s.Boxes {
		cx, cy, w, h := b.Centers()
		out.Boxes[i] = boxspace.NewCenter(1-cx, cy, w, h, boxspace.Normalized)
	}
	return out, nil
}

// VerticalFlip mirrors the image top to bottom.
type VerticalFlip struct{}

// Name implements Transform.
func (VerticalFlip) Name() string { return "vertical_flip" }

// Apply implements Transform.
func (VerticalFlip) Apply(_ *rand.Rand, s Sample) (Sample, error) {
	out := Sample{Image: imaging.FlipV(s.Image), Boxes: make([]boxspace.Box, len(s.Boxes)), ClassIDs: s.ClassIDs}
	for i, b := range s.Boxes {
		cx, cy, w, h := b.Centers()
		out.Boxes[i] = boxspace.NewCenter(cx, 1-cy, w, h, boxspace.Normalized)
	}
	return out, nil
}

// ShiftScaleRotate applies a random affine transform about the image center: rotation by
// up to RotateLimit degrees, scaling by 1±ScaleLimit and translation by up to ShiftLimit
// of the image size on each axis. Uncovered pixels are black.
type ShiftScaleRotate struct {
	ShiftLimit  float64
	ScaleLimit  float64
	RotateLimit float64
}

// Name implements Transform.
func (ShiftScaleRotate) Name() string { return "shift_scale_rotate" }

// Apply implements Transform.
func (t ShiftScaleRotate) Apply(rng *rand.Rand, s Sample) (Sample, error) {
	angle := uniform(rng, t.RotateLimit)
	scale := 1 + uniform(rng, t.ScaleLimit)
	dx := uniform(rng, t.ShiftLimit)
	dy := uniform(rng, t.ShiftLimit)
	return Affine(s, AffineMatrix(s.Frame(), angle, scale, dx, dy))
}

// AffineMatrix returns the source to destination pixel transform rotating by angle
// degrees (counter-clockwise on screen) and scaling about the image center, then
// shifting by dx*W and dy*H.
func AffineMatrix(frame boxspace.Size, angle, scale, dx, dy float64) f64.Aff3 {
	theta := angle * math.Pi / 180
	a := scale * math.Cos(theta)
	b := scale * math.Sin(theta)
	cx, cy := frame.W/2, frame.H/2
	return f64.Aff3{
		a, b, (1-a)*cx - b*cy + dx*frame.W,
		-b, a, b*cx + (1-a)*cy + dy*frame.H,
	}
}

// Affine warps the sample image with m and maps every box through it. A mapped box is
// the axis-aligned hull of its four transformed corners.
func Affine(s Sample, m f64.Aff3) (Sample, error) {
	frame := s.Frame()
	dst := image.NewNRGBA(s.Image.Bounds())
	xdraw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, xdraw.Src)
	xdraw.BiLinear.Transform(dst, m, s.Image, s.Image.Bounds(), xdraw.Src, nil)

	out := Sample{Image: dst, Boxes: make([]boxspace.Box, len(s.Boxes)), ClassIDs: s.ClassIDs}
	for i, b := range s.Boxes {
		px, err := boxspace.Denormalize(b.ToCorner(), frame)
		if err != nil {
			return Sample{}, err
		}
		x1, y1, x2, y2 := px.Corners()
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, p := range [4][2]float64{{x1, y1}, {x2, y1}, {x1, y2}, {x2, y2}} {
			x := m[0]*p[0] + m[1]*p[1] + m[2]
			y := m[3]*p[0] + m[4]*p[1] + m[5]
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
		norm, err := boxspace.Normalize(boxspace.NewCorner(minX, minY, maxX, maxY, boxspace.Pixel), frame)
		if err != nil {
			return Sample{}, err
		}
		out.Boxes[i] = norm.ToCenter()
	}
	return out, nil
}
