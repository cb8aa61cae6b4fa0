package augment

import (
	"image/color"
	"testing"

	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f64"
)

func TestHorizontalFlip(t *testing.T) {
	s := sample([4]float64{0.25, 0.4, 0.1, 0.2})
	out, err := HorizontalFlip{}.Apply(nil, s)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.Image.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, s.Image.NRGBAAt(0, 0), "input untouched")
	assert.InDeltaSlice(t, []float64{0.75, 0.4, 0.1, 0.2}, out.Boxes[0].V[:], 1e-9)
	assert.Equal(t, s.ClassIDs, out.ClassIDs)
}

func TestVerticalFlip(t *testing.T) {
	s := sample([4]float64{0.25, 0.1, 0.1, 0.2})
	s.Image.SetNRGBA(0, 0, color.NRGBA{G: 255, A: 255})

	out, err := VerticalFlip{}.Apply(nil, s)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.Image.NRGBAAt(0, 99))
	assert.InDeltaSlice(t, []float64{0.25, 0.9, 0.1, 0.2}, out.Boxes[0].V[:], 1e-9)
}

func TestAffineMatrix(t *testing.T) {
	frame := boxspace.Size{W: 100, H: 100}

	identity := AffineMatrix(frame, 0, 1, 0, 0)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0, 1, 0}, identity[:], 1e-9)

	shift := AffineMatrix(boxspace.Size{W: 200, H: 100}, 0, 1, 0.1, -0.1)
	assert.InDeltaSlice(t, []float64{1, 0, 20, 0, 1, -10}, shift[:], 1e-9)

	rot := AffineMatrix(frame, 90, 1, 0, 0)
	assert.InDeltaSlice(t, []float64{0, 1, 0, -1, 0, 100}, rot[:], 1e-9)

	// Scaling about the center keeps the center fixed.
	zoom := AffineMatrix(frame, 0, 2, 0, 0)
	assert.InDelta(t, 50.0, zoom[0]*50+zoom[1]*50+zoom[2], 1e-9)
	assert.InDelta(t, 50.0, zoom[3]*50+zoom[4]*50+zoom[5], 1e-9)
}

func TestAffineBoxes(t *testing.T) {
	s := Sample{Image: halves(100, 100)}
	s.Boxes = []boxspace.Box{boxspace.NewCorner(0.1, 0.1, 0.3, 0.2, boxspace.Normalized).ToCenter()}
	s.ClassIDs = []int{2}

	out, err := Affine(s, AffineMatrix(s.Frame(), 90, 1, 0, 0))
	require.NoError(t, err)
	require.Len(t, out.Boxes, 1)
	x1, y1, x2, y2 := out.Boxes[0].Corners()
	assert.InDeltaSlice(t, []float64{0.1, 0.7, 0.2, 0.9}, []float64{x1, y1, x2, y2}, 1e-9)
	assert.Equal(t, boxspace.Center, out.Boxes[0].Encoding)

	same, err := Affine(s, f64.Aff3{1, 0, 0, 0, 1, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, s.Boxes[0].V[:], same.Boxes[0].V[:], 1e-9)
	assert.Equal(t, s.Image.NRGBAAt(10, 10), same.Image.NRGBAAt(10, 10))
	assert.Equal(t, s.Image.NRGBAAt(90, 10), same.Image.NRGBAAt(90, 10))
}

func TestAffineFillsUncoveredPixelsBlack(t *testing.T) {
	s := Sample{Image: halves(100, 100)}
	out, err := Affine(s, f64.Aff3{1, 0, 50, 0, 1, 0})
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{A: 255}, out.Image.NRGBAAt(10, 50))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.Image.NRGBAAt(75, 50))
}
