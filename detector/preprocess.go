package detector

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PrepareInput resizes img to size with Lanczos3 and writes it into dst as planar RGB
// (CHW) floats scaled to [0, 1], the layout YOLOv8 exports expect.
//
// Arguments:
//   - img: The image to prepare.
//   - dst: The destination buffer, at least 3*size.X*size.Y floats.
//   - size: The model input width and height.
//
// Returns:
//   - error: An error if the destination is too small.
func PrepareInput(img image.Image, dst []float32, size image.Point) error {
	if size.X <= 0 || size.Y <= 0 {
		return errors.Errorf("invalid input size %v", size)
	}
	channelSize := size.X * size.Y
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(size.X), uint(size.Y), img, resize.Lanczos3)
	bounds := resized.Bounds()

	i := 0
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
