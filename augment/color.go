package augment

import (
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// BrightnessContrast scales pixel values by 1±ContrastLimit and offsets them by
// ±BrightnessLimit of the full range. Boxes are unchanged.
type BrightnessContrast struct {
	BrightnessLimit float64
	ContrastLimit   float64
}

// Name implements Transform.
func (BrightnessContrast) Name() string { return "brightness_contrast" }

// Apply implements Transform.
func (t BrightnessContrast) Apply(rng *rand.Rand, s Sample) (Sample, error) {
	alpha := 1 + uniform(rng, t.ContrastLimit)
	beta := uniform(rng, t.BrightnessLimit) * 255
	s.Image = imaging.AdjustFunc(s.Image, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampByte(float64(c.R)*alpha + beta),
			G: clampByte(float64(c.G)*alpha + beta),
			B: clampByte(float64(c.B)*alpha + beta),
			A: c.A,
		}
	})
	return s, nil
}

// HueSaturationValue shifts hue, saturation and value by random amounts. Limits use the
// 8-bit HSV scale: hue in [0, 180) and saturation and value in [0, 255]. Boxes are
// unchanged.
type HueSaturationValue struct {
	HueShift float64
	SatShift float64
	ValShift float64
}

// Name implements Transform.
func (HueSaturationValue) Name() string { return "hue_saturation_value" }

// Apply implements Transform.
func (t HueSaturationValue) Apply(rng *rand.Rand, s Sample) (Sample, error) {
	hue := uniform(rng, t.HueShift) * 2 // degrees
	sat := uniform(rng, t.SatShift) / 255
	val := uniform(rng, t.ValShift) / 255
	s.Image = imaging.AdjustFunc(s.Image, func(c color.NRGBA) color.NRGBA {
		return ShiftHSV(c, hue, sat, val)
	})
	return s, nil
}

// ShiftHSV rotates the hue of c by hue degrees and adds sat and val to its saturation
// and value, clamped to [0, 1].
func ShiftHSV(c color.NRGBA, hue, sat, val float64) color.NRGBA {
	col, _ := colorful.MakeColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	h, s, v := col.Hsv()
	h = math.Mod(h+hue, 360)
	if h < 0 {
		h += 360
	}
	out := colorful.Hsv(h, clampUnit(s+sat), clampUnit(v+val)).Clamped()
	r, g, b := out.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: c.A}
}

func clampByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
