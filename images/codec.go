package images

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrBadImage is returned when image bytes cannot be decoded.
var ErrBadImage = errors.New("bad image")

// JPEGQuality is used for JPEG output.
const JPEGQuality = 95

// Decode reads an image of any supported format from r.
func Decode(r io.Reader) (image.Image, ImageFormat, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(ErrBadImage, err.Error())
	}
	return img, ImageFormat(name), nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(b []byte) (image.Image, ImageFormat, error) {
	if len(b) == 0 {
		return nil, "", errors.Wrap(ErrBadImage, "empty image data")
	}
	return Decode(bytes.NewReader(b))
}

// DecodeFile decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	defer f.Close()

	img, _, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// DecodeDataURL decodes a "data:image/...;base64,<payload>" URL. Everything up to the
// first comma is discarded, so a bare base64 payload is accepted too.
func DecodeDataURL(s string) (image.Image, error) {
	payload := s
	if i := strings.IndexByte(s, ','); i >= 0 {
		payload = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, errors.Wrap(ErrBadImage, "invalid base64 payload")
	}
	img, _, err := DecodeBytes(raw)
	return img, err
}

// EncodeDataURL encodes img as a base64 data URL in the given format.
func EncodeDataURL(img image.Image, format ImageFormat) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return "", err
	}
	return "data:image/" + string(format) + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: true})
	default:
		return errors.Errorf("unsupported image format: %q", format)
	}
	return errors.Wrapf(err, "encoding %s", format)
}

// EncodeFile writes img to path in the format given by its extension.
func EncodeFile(path string, img image.Image) error {
	format, ok := FormatFromPath(path)
	if !ok {
		return errors.Errorf("unsupported output extension for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, img, format); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}
