package render

import "image/color"

var (
	// ClassColors is the overlay palette, indexed by class id modulo its length:
	// bullet, egg, hexagon, pentagon, player, square, triangle, wall.
	ClassColors = []color.Color{
		color.RGBA{R: 255, G: 38, B: 0, A: 255},    // bullet
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, // egg
		color.RGBA{R: 48, G: 242, B: 229, A: 255},  // hexagon
		color.RGBA{R: 135, G: 78, B: 254, A: 255},  // pentagon
		color.RGBA{R: 0, G: 249, B: 1, A: 255},     // player
		color.RGBA{R: 254, G: 199, B: 0, A: 255},   // square
		color.RGBA{R: 255, G: 147, B: 0, A: 255},   // triangle
		color.RGBA{R: 122, G: 122, B: 122, A: 255}, // wall
	}

	// Lime is the annotator box and tag colour.
	Lime = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	// Black is the annotator text colour.
	Black = color.RGBA{A: 255}
	// White is the overlay text colour.
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ColorFor returns the palette colour for a class id.
func ColorFor(palette []color.Color, classID int) color.Color {
	if len(palette) == 0 {
		return Lime
	}
	i := classID % len(palette)
	if i < 0 {
		i += len(palette)
	}
	return palette[i]
}
