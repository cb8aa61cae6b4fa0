// Package render - Drawing detection boxes and label tags.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/nvr-ai/yolo-overlay/boxspace"
	"github.com/nvr-ai/yolo-overlay/common"
)

// Style controls how boxes and tags are painted.
type Style struct {
	// Palette colours boxes by class id. Empty paints everything Lime.
	Palette   []color.Color
	TextColor color.Color
	LineWidth float64
	FontSize  float64
	// TagAlpha is the opacity of the tag background.
	TagAlpha float64
	// TagAbove places the tag on top of the box edge, otherwise it sits inside the top
	// left corner.
	TagAbove bool
	// TagPadding is the horizontal padding around the tag text.
	TagPadding float64
}

// OverlayStyle matches the browser overlay: class colours, white text on a
// translucent tag above the box.
func OverlayStyle() Style {
	return Style{
		Palette:    ClassColors,
		TextColor:  White,
		LineWidth:  2,
		FontSize:   13,
		TagAlpha:   0.8,
		TagAbove:   true,
		TagPadding: 4,
	}
}

// AnnotateStyle draws lime boxes with black text on a lime tag.
func AnnotateStyle() Style {
	return Style{
		TextColor:  Black,
		LineWidth:  2,
		FontSize:   12,
		TagAlpha:   1,
		TagPadding: 1,
	}
}

// LabelText formats a detection tag as "name NN%".
func LabelText(d common.Detection) string {
	return fmt.Sprintf("%s %d%%", d.Name, int(math.Round(d.Label.Confidence*100)))
}

// Renderer paints detections with a fixed font.
type Renderer struct {
	font  *truetype.Font
	style Style
}

// NewRenderer returns a renderer. A nil font uses the built-in one.
func NewRenderer(f *truetype.Font, style Style) *Renderer {
	if f == nil {
		f = defaultFont
	}
	return &Renderer{font: f, style: style}
}

// Style returns the renderer style.
func (r *Renderer) Style() Style {
	return r.style
}

// Annotate returns a copy of img with every non-degenerate detection drawn on it.
// Detections must be pixel boxes in img's coordinates.
func (r *Renderer) Annotate(img image.Image, detections []common.Detection) image.Image {
	dc := gg.NewContextForImage(img)
	r.draw(dc, detections)
	return dc.Image()
}

// Overlay paints detections found on a frame of size from onto a transparent surface of
// size to. Boxes are rescaled per axis, so a capture stretched over a differently shaped
// surface still lines up.
func (r *Renderer) Overlay(detections []common.Detection, from, to boxspace.Size) (image.Image, error) {
	scaled := make([]common.Detection, 0, len(detections))
	for _, d := range detections {
		s, err := d.Rescale(from, to)
		if err != nil {
			return nil, err
		}
		scaled = append(scaled, s)
	}

	dc := gg.NewContext(int(math.Round(to.W)), int(math.Round(to.H)))
	r.draw(dc, scaled)
	return dc.Image(), nil
}

func (r *Renderer) draw(dc *gg.Context, detections []common.Detection) {
	dc.SetFontFace(Face(r.font, r.style.FontSize))
	for _, d := range detections {
		if d.Box.Degenerate() {
			continue
		}
		x1, y1, x2, y2 := d.Box.Corners()
		c := ColorFor(r.style.Palette, d.Label.ClassID)

		// Box
		dc.SetColor(c)
		dc.SetLineWidth(r.style.LineWidth)
		dc.DrawRectangle(x1, y1, x2-x1, y2-y1)
		dc.Stroke()

		// Tag
		text := LabelText(d)
		tw, th := dc.MeasureString(text)
		pad := r.style.TagPadding
		tagW, tagH := tw+2*pad, th+2*pad
		tagY := y1
		if r.style.TagAbove {
			tagY = y1 - tagH
		}
		dc.SetColor(withAlpha(c, r.style.TagAlpha))
		dc.DrawRectangle(x1, tagY, tagW, tagH)
		dc.Fill()

		dc.SetColor(r.style.TextColor)
		dc.DrawString(text, x1+pad, tagY+pad+th)
	}
}

func withAlpha(c color.Color, alpha float64) color.Color {
	if alpha >= 1 {
		return c
	}
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(math.Round(alpha * 255))}
}
