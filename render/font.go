package render

import (
	"os"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

var defaultFont *truetype.Font

// init parses the built-in bold Go font.
func init() {
	var err error
	defaultFont, err = truetype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
}

// DefaultFont returns the built-in font used when no TrueType file is configured.
func DefaultFont() *truetype.Font {
	return defaultFont
}

// LoadFont parses the TrueType font at path.
func LoadFont(path string) (*truetype.Font, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading font %s", path)
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing font %s", path)
	}
	return f, nil
}

// Face returns a face of f at size points, or of the built-in font when f is nil.
func Face(f *truetype.Font, size float64) font.Face {
	if f == nil {
		f = defaultFont
	}
	return truetype.NewFace(f, &truetype.Options{Size: size})
}
