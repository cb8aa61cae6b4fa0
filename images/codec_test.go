package images

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			if x < 20 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestEncodeDecodeFormats(t *testing.T) {
	tests := []struct {
		name     string
		format   ImageFormat
		lossless bool
	}{
		{name: "png", format: FormatPNG, lossless: true},
		{name: "jpeg", format: FormatJPEG},
		{name: "gif", format: FormatGIF},
		{name: "bmp", format: FormatBMP, lossless: true},
		{name: "tiff", format: FormatTIFF, lossless: true},
		{name: "webp", format: FormatWebP, lossless: true},
	}

	src := getTestImage()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src, tt.format))

			img, format, err := DecodeBytes(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, 20, img.Bounds().Dy())

			if tt.lossless {
				r, g, b, _ := img.At(img.Bounds().Min.X+5, img.Bounds().Min.Y+5).RGBA()
				assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
			}
		})
	}

	assert.Error(t, Encode(&bytes.Buffer{}, src, ImageFormat("heic")))
}

func TestDecodeBadImage(t *testing.T) {
	_, _, err := DecodeBytes([]byte("not an image"))
	assert.True(t, errors.Is(err, ErrBadImage))

	_, _, err = DecodeBytes(nil)
	assert.True(t, errors.Is(err, ErrBadImage))
}

func TestDecodeDataURL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, getTestImage(), FormatPNG))
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	tests := []struct {
		name  string
		input string
		err   bool
	}{
		{name: "data url", input: "data:image/png;base64," + payload},
		{name: "bare base64", input: payload},
		{name: "jpeg data url with png bytes", input: "data:image/jpeg;base64," + payload},
		{name: "invalid base64", input: "data:image/png;base64,@@@", err: true},
		{name: "not an image", input: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), err: true},
		{name: "empty", input: "", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeDataURL(tt.input)
			if tt.err {
				assert.True(t, errors.Is(err, ErrBadImage))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
		})
	}
}

func TestEncodeDataURL(t *testing.T) {
	url, err := EncodeDataURL(getTestImage(), FormatJPEG)
	require.NoError(t, err)
	assert.Contains(t, url, "data:image/jpeg;base64,")

	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestEncodeDecodeFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.png", "out.JPG", "out.webp", "out.bmp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, EncodeFile(path, getTestImage()), name)

		img, err := DecodeFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, 40, img.Bounds().Dx())
	}

	assert.Error(t, EncodeFile(filepath.Join(dir, "out.txt"), getTestImage()))
	_, err := DecodeFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
