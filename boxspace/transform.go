package boxspace

import (
	"github.com/pkg/errors"
)

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clip clamps every coordinate of the box independently into its domain: [0, 1] for
// normalized boxes (frame is ignored) and [0, frame.W] / [0, frame.H] for pixel boxes.
//
// The clamp does not re-derive a consistent shape. A box lying partly or fully outside
// the domain may come back with zero or inverted extent; check Degenerate on the result.
//
// Arguments:
//   - b: The box to clip.
//   - frame: The pixel bounds used for pixel-domain boxes.
//
// Returns:
//   - Box: The clipped box, same encoding and domain.
func Clip(b Box, frame Size) Box {
	xMax, yMax := 1.0, 1.0
	if b.Domain == Pixel {
		xMax, yMax = frame.W, frame.H
	}
	b.V[0] = clamp(b.V[0], 0, xMax)
	b.V[1] = clamp(b.V[1], 0, yMax)
	b.V[2] = clamp(b.V[2], 0, xMax)
	b.V[3] = clamp(b.V[3], 0, yMax)
	return b
}

// scale multiplies the x-axis values by sx and the y-axis values by sy. Both encodings
// are linear in their coordinates so the same factors apply to either.
func scale(b Box, sx, sy float64) Box {
	b.V[0] *= sx
	b.V[1] *= sy
	b.V[2] *= sx
	b.V[3] *= sy
	return b
}

// Rescale maps a pixel box from one pixel space to another using independent factors
// sx = to.W/from.W and sy = to.H/from.H. The stretch is non-uniform whenever the two
// spaces have different aspect ratios, e.g. a captured tab bitmap drawn over a window.
//
// Arguments:
//   - b: A pixel-domain box in either encoding.
//   - from: The size of the space the box is expressed in.
//   - to: The size of the target space.
//
// Returns:
//   - Box: The rescaled box.
//   - error: ErrZeroDimension if from has a non-positive side, ErrDomainMismatch for
//     normalized boxes.
func Rescale(b Box, from, to Size) (Box, error) {
	if b.Domain != Pixel {
		return b, errors.Wrap(ErrDomainMismatch, "rescale requires a pixel box")
	}
	if !from.Valid() {
		return b, errors.Wrapf(ErrZeroDimension, "rescale from %vx%v", from.W, from.H)
	}
	return scale(b, to.W/from.W, to.H/from.H), nil
}

// Normalize converts a pixel box to the normalized domain by dividing x-axis values by
// frame.W and y-axis values by frame.H.
func Normalize(b Box, frame Size) (Box, error) {
	if b.Domain != Pixel {
		return b, errors.Wrap(ErrDomainMismatch, "normalize requires a pixel box")
	}
	if !frame.Valid() {
		return b, errors.Wrapf(ErrZeroDimension, "normalize against %vx%v", frame.W, frame.H)
	}
	out := scale(b, 1/frame.W, 1/frame.H)
	out.Domain = Normalized
	return out, nil
}

// Denormalize converts a normalized box to pixels by multiplying x-axis values by
// frame.W and y-axis values by frame.H. It is the inverse of Normalize.
func Denormalize(b Box, frame Size) (Box, error) {
	if b.Domain != Normalized {
		return b, errors.Wrap(ErrDomainMismatch, "denormalize requires a normalized box")
	}
	if !frame.Valid() {
		return b, errors.Wrapf(ErrZeroDimension, "denormalize against %vx%v", frame.W, frame.H)
	}
	out := scale(b, frame.W, frame.H)
	out.Domain = Pixel
	return out, nil
}

// IoU returns the intersection over union of two boxes in the same domain. Degenerate
// or disjoint boxes give 0.
func IoU(a, b Box) (float64, error) {
	if a.Domain != b.Domain {
		return 0, errors.Wrapf(ErrDomainMismatch, "iou of %s and %s boxes", a.Domain, b.Domain)
	}
	ax1, ay1, ax2, ay2 := a.Corners()
	bx1, by1, bx2, by2 := b.Corners()

	interW := min(ax2, bx2) - max(ax1, bx1)
	interH := min(ay2, by2) - max(ay1, by1)
	if interW <= 0 || interH <= 0 {
		return 0, nil
	}
	inter := interW * interH
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0, nil
	}
	return inter / union, nil
}
