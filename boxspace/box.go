// Package boxspace - Bounding box representation, conversion and coordinate transforms.
package boxspace

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Encoding identifies how the four coordinates of a Box are laid out.
type Encoding int

const (
	// Corner is (x1, y1, x2, y2): top-left and bottom-right coordinates.
	Corner Encoding = iota
	// Center is (cx, cy, w, h): center point plus width and height.
	Center
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case Corner:
		return "corner"
	case Center:
		return "center"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// Domain identifies the units of a Box.
type Domain int

const (
	// Pixel coordinates are absolute offsets bounded by the image width and height.
	Pixel Domain = iota
	// Normalized coordinates are fractions of the image width and height in [0, 1].
	Normalized
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case Pixel:
		return "pixel"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

var (
	// ErrZeroDimension is returned when a transform would divide by a non-positive
	// image width or height.
	ErrZeroDimension = errors.New("image dimensions must be positive")
	// ErrDomainMismatch is returned when a transform receives a box in the wrong domain.
	ErrDomainMismatch = errors.New("box domain mismatch")
	// ErrInvalidBox is returned by Validate for boxes that break the encoding invariants.
	ErrInvalidBox = errors.New("invalid box")
)

// Size is the width and height of an image or drawing surface in pixels.
type Size struct {
	W, H float64
}

// NewSize returns a Size from integer dimensions.
func NewSize(w, h int) Size {
	return Size{W: float64(w), H: float64(h)}
}

// Valid reports whether both dimensions are strictly positive.
func (s Size) Valid() bool {
	return s.W > 0 && s.H > 0
}

// Box is a tagged bounding box. V holds (x1, y1, x2, y2) for Corner encoding and
// (cx, cy, w, h) for Center encoding. Indices 0 and 2 are always x-axis values and
// indices 1 and 3 are y-axis values.
type Box struct {
	Encoding Encoding
	Domain   Domain
	V        [4]float64
}

// NewCorner returns a corner-form box.
func NewCorner(x1, y1, x2, y2 float64, d Domain) Box {
	return Box{Encoding: Corner, Domain: d, V: [4]float64{x1, y1, x2, y2}}
}

// NewCenter returns a center-form box.
func NewCenter(cx, cy, w, h float64, d Domain) Box {
	return Box{Encoding: Center, Domain: d, V: [4]float64{cx, cy, w, h}}
}

// ConvertCornerToCenter converts (x1, y1, x2, y2) to (cx, cy, w, h). The corners must
// be ordered (x1 <= x2, y1 <= y2) for the result to have a non-negative extent.
func ConvertCornerToCenter(x1, y1, x2, y2 float64) (cx, cy, w, h float64) {
	return (x1 + x2) / 2, (y1 + y2) / 2, x2 - x1, y2 - y1
}

// ConvertCenterToCorner converts (cx, cy, w, h) to (x1, y1, x2, y2).
func ConvertCenterToCorner(cx, cy, w, h float64) (x1, y1, x2, y2 float64) {
	return cx - w/2, cy - h/2, cx + w/2, cy + h/2
}

// Corners returns the box as (x1, y1, x2, y2), converting from center form if needed.
func (b Box) Corners() (x1, y1, x2, y2 float64) {
	if b.Encoding == Center {
		return ConvertCenterToCorner(b.V[0], b.V[1], b.V[2], b.V[3])
	}
	return b.V[0], b.V[1], b.V[2], b.V[3]
}

// Centers returns the box as (cx, cy, w, h), converting from corner form if needed.
func (b Box) Centers() (cx, cy, w, h float64) {
	if b.Encoding == Corner {
		return ConvertCornerToCenter(b.V[0], b.V[1], b.V[2], b.V[3])
	}
	return b.V[0], b.V[1], b.V[2], b.V[3]
}

// ToCorner returns the same box in corner form.
func (b Box) ToCorner() Box {
	x1, y1, x2, y2 := b.Corners()
	return NewCorner(x1, y1, x2, y2, b.Domain)
}

// ToCenter returns the same box in center form.
func (b Box) ToCenter() Box {
	cx, cy, w, h := b.Centers()
	return NewCenter(cx, cy, w, h, b.Domain)
}

// Canon returns the box with ordered corners (and non-negative extent in center form).
func (b Box) Canon() Box {
	if b.Encoding == Center {
		b.V[2] = math.Abs(b.V[2])
		b.V[3] = math.Abs(b.V[3])
		return b
	}
	if b.V[0] > b.V[2] {
		b.V[0], b.V[2] = b.V[2], b.V[0]
	}
	if b.V[1] > b.V[3] {
		b.V[1], b.V[3] = b.V[3], b.V[1]
	}
	return b
}

// Width returns the horizontal extent of the box. It is negative for inverted corners.
func (b Box) Width() float64 {
	if b.Encoding == Center {
		return b.V[2]
	}
	return b.V[2] - b.V[0]
}

// Height returns the vertical extent of the box. It is negative for inverted corners.
func (b Box) Height() float64 {
	if b.Encoding == Center {
		return b.V[3]
	}
	return b.V[3] - b.V[1]
}

// Area returns the box area, or 0 for degenerate boxes.
func (b Box) Area() float64 {
	if b.Degenerate() {
		return 0
	}
	return b.Width() * b.Height()
}

// Degenerate reports whether the box has zero or negative width or height. Clipping
// can produce such boxes; callers must drop them before rendering or persisting.
func (b Box) Degenerate() bool {
	return !(b.Width() > 0) || !(b.Height() > 0)
}

// Validate checks the encoding invariants: finite values, ordered corners for
// Corner form and non-negative extent for Center form.
func (b Box) Validate() error {
	for i, v := range b.V {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidBox, "coordinate %d is not finite", i)
		}
	}
	if b.Width() < 0 || b.Height() < 0 {
		return errors.Wrapf(ErrInvalidBox, "negative extent in %s box %v", b.Encoding, b.V)
	}
	return nil
}

// String formats the box with its tags.
func (b Box) String() string {
	return fmt.Sprintf("%s/%s(%.6g, %.6g, %.6g, %.6g)",
		b.Domain, b.Encoding, b.V[0], b.V[1], b.V[2], b.V[3])
}
