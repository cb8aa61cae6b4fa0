package images

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// Downscale shrinks img so its longest side is at most longest pixels, keeping the
// aspect ratio and using Lanczos3. Images already small enough, and longest <= 0, return
// img unchanged. New dimensions are truncated, never below one pixel.
func Downscale(img image.Image, longest int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	size := DownscaledSize(w, h, longest)
	if size.X == w && size.Y == h {
		return img
	}
	return resize.Resize(uint(size.X), uint(size.Y), img, resize.Lanczos3)
}

// DownscaledSize returns the dimensions Downscale produces for a w x h image.
func DownscaledSize(w, h, longest int) image.Point {
	if longest <= 0 || max(w, h) <= longest {
		return image.Point{X: w, Y: h}
	}
	ratio := float64(longest) / float64(max(w, h))
	return image.Point{
		X: max(1, int(float64(w)*ratio)),
		Y: max(1, int(float64(h)*ratio)),
	}
}

// Resize scales img to exactly width x height with Lanczos3.
func Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ToNRGBA returns img as an *image.NRGBA with bounds starting at the origin, copying
// only when needed.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
