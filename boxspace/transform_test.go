package boxspace

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClip(t *testing.T) {
	tests := []struct {
		name       string
		box        Box
		frame      Size
		expected   [4]float64
		degenerate bool
	}{
		{
			name:     "normalized corners clamped per coordinate",
			box:      NewCorner(-0.5, 0.3, 1.5, 0.9, Normalized),
			expected: [4]float64{0, 0.3, 1, 0.9},
		},
		{
			name:       "normalized box right of the image collapses",
			box:        NewCorner(1.1, 0.2, 1.3, 0.5, Normalized),
			expected:   [4]float64{1, 0.2, 1, 0.5},
			degenerate: true,
		},
		{
			name:     "normalized center values clamped independently",
			box:      NewCenter(1.2, 0.5, 0.3, -0.1, Normalized),
			expected: [4]float64{1, 0.5, 0.3, 0},
			// h clamped to zero
			degenerate: true,
		},
		{
			name:     "normalized frame is ignored",
			box:      NewCorner(0.1, 0.1, 0.9, 0.9, Normalized),
			frame:    Size{W: 0.5, H: 0.5},
			expected: [4]float64{0.1, 0.1, 0.9, 0.9},
		},
		{
			name:     "pixel axes use their own bounds",
			box:      NewCorner(-10, -5, 700, 500, Pixel),
			frame:    Size{W: 640, H: 480},
			expected: [4]float64{0, 0, 640, 480},
		},
		{
			name:       "pixel box above the frame collapses",
			box:        NewCorner(10, -50, 20, -10, Pixel),
			frame:      Size{W: 640, H: 480},
			expected:   [4]float64{10, 0, 20, 0},
			degenerate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(tt.box, tt.frame)
			assertCoords(t, tt.expected, got)
			assert.Equal(t, tt.box.Encoding, got.Encoding)
			assert.Equal(t, tt.box.Domain, got.Domain)
			assert.Equal(t, tt.degenerate, got.Degenerate())
		})
	}
}

// TestClipIdempotent applies Clip twice to random boxes in both domains.
func TestClipIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	frame := Size{W: 320, H: 200}
	for i := 0; i < 500; i++ {
		v := [4]float64{}
		for j := range v {
			v[j] = rng.Float64()*4 - 2
		}
		normalized := Box{Encoding: Encoding(i % 2), Domain: Normalized, V: v}
		once := Clip(normalized, frame)
		assert.Equal(t, once, Clip(once, frame))

		for j := range v {
			v[j] = rng.Float64()*1000 - 300
		}
		pixel := Box{Encoding: Encoding(i % 2), Domain: Pixel, V: v}
		once = Clip(pixel, frame)
		assert.Equal(t, once, Clip(once, frame))
	}
}

func TestRescale(t *testing.T) {
	box := NewCorner(0, 0, 100, 50, Pixel)

	got, err := Rescale(box, Size{W: 100, H: 50}, Size{W: 200, H: 100})
	require.NoError(t, err)
	assert.Equal(t, [4]float64{0, 0, 200, 100}, got.V)

	got, err = Rescale(box, Size{W: 100, H: 50}, Size{W: 300, H: 50})
	require.NoError(t, err)
	assert.Equal(t, [4]float64{0, 0, 300, 50}, got.V, "axes scale independently")

	center := NewCenter(50, 25, 100, 50, Pixel)
	got, err = Rescale(center, Size{W: 100, H: 50}, Size{W: 300, H: 50})
	require.NoError(t, err)
	assert.Equal(t, Center, got.Encoding)
	assert.Equal(t, [4]float64{150, 25, 300, 50}, got.V)
	assertCoords(t, [4]float64{0, 0, 300, 50}, got.ToCorner())
}

func TestRescaleErrors(t *testing.T) {
	box := NewCorner(0, 0, 10, 10, Pixel)

	_, err := Rescale(box, Size{W: 0, H: 50}, Size{W: 100, H: 100})
	assert.True(t, errors.Is(err, ErrZeroDimension))

	_, err = Rescale(box, Size{W: 50, H: -1}, Size{W: 100, H: 100})
	assert.True(t, errors.Is(err, ErrZeroDimension))

	_, err = Rescale(NewCorner(0, 0, 1, 1, Normalized), Size{W: 1, H: 1}, Size{W: 2, H: 2})
	assert.True(t, errors.Is(err, ErrDomainMismatch))
}

// TestNormalizeRoundTrip normalizes random pixel boxes and maps them back.
func TestNormalizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 500; i++ {
		frame := Size{W: 1 + rng.Float64()*4000, H: 1 + rng.Float64()*4000}
		box := Box{
			Encoding: Encoding(i % 2),
			Domain:   Pixel,
			V:        [4]float64{rng.Float64() * frame.W, rng.Float64() * frame.H, rng.Float64() * frame.W, rng.Float64() * frame.H},
		}

		norm, err := Normalize(box, frame)
		require.NoError(t, err)
		assert.Equal(t, Normalized, norm.Domain)

		back, err := Denormalize(norm, frame)
		require.NoError(t, err)
		assert.Equal(t, Pixel, back.Domain)
		assertCoords(t, box.V, back)
	}
}

func TestNormalizeUsesAxisDimensions(t *testing.T) {
	norm, err := Normalize(NewCorner(64, 48, 320, 240, Pixel), Size{W: 640, H: 480})
	require.NoError(t, err)
	assertCoords(t, [4]float64{0.1, 0.1, 0.5, 0.5}, norm)

	px, err := Denormalize(NewCenter(0.5, 0.5, 0.25, 0.5, Normalized), Size{W: 800, H: 600})
	require.NoError(t, err)
	assertCoords(t, [4]float64{400, 300, 200, 300}, px)
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(NewCorner(0, 0, 1, 1, Pixel), Size{W: 0, H: 10})
	assert.True(t, errors.Is(err, ErrZeroDimension))

	_, err = Normalize(NewCorner(0, 0, 1, 1, Normalized), Size{W: 10, H: 10})
	assert.True(t, errors.Is(err, ErrDomainMismatch))

	_, err = Denormalize(NewCorner(0, 0, 1, 1, Normalized), Size{W: 10, H: 0})
	assert.True(t, errors.Is(err, ErrZeroDimension))

	_, err = Denormalize(NewCorner(0, 0, 1, 1, Pixel), Size{W: 10, H: 10})
	assert.True(t, errors.Is(err, ErrDomainMismatch))
}

func TestIoU(t *testing.T) {
	a := NewCorner(0, 0, 10, 10, Pixel)
	b := NewCorner(5, 5, 15, 15, Pixel)

	iou, err := IoU(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 25.0/175.0, iou, tolerance)

	iou, err = IoU(a, a.ToCenter())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, iou, tolerance)

	iou, err = IoU(a, NewCorner(20, 20, 30, 30, Pixel))
	require.NoError(t, err)
	assert.Equal(t, 0.0, iou)

	_, err = IoU(a, NewCorner(0, 0, 1, 1, Normalized))
	assert.True(t, errors.Is(err, ErrDomainMismatch))
}
