// Package imaging normalizes fetched images: decode any common raster format,
// downscale to a maximum width, re-encode to one canonical format.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/teranos/catalogix/errors"
)

// Format is a target encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// DefaultQuality is used when Options.Quality is zero.
const DefaultQuality = 85

// ParseFormat accepts jpeg, jpg and png, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return "", errors.Newf("unsupported image format %q (supported: jpeg, png)", s)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	if f == PNG {
		return "png"
	}
	return "jpg"
}

// ContentType is the MIME type for uploads.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Options tune encoding.
type Options struct {
	Quality int // JPEG only
}

// ResizeAndEncode decodes data, scales it down to maxWidth when it is wider
// (aspect ratio preserved, Catmull-Rom resampling) and encodes it as format.
// Images at or below maxWidth are re-encoded without scaling.
func ResizeAndEncode(data []byte, maxWidth int, format Format, opts Options) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("decode failed: empty image")
	}
	if maxWidth <= 0 {
		return nil, errors.Newf("invalid max width %d", maxWidth)
	}

	src, kind, err := decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode failed")
	}

	img := Fit(src, maxWidth)
	if kind == "gif" || format == JPEG {
		// JPEG has no alpha and paletted GIFs encode poorly; flatten onto white
		img = flatten(img)
	}

	var buf bytes.Buffer
	switch format {
	case JPEG:
		quality := opts.Quality
		if quality <= 0 {
			quality = DefaultQuality
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	default:
		return nil, errors.Newf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s failed", format)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, string, error) {
	// first frame only for animated GIFs
	if bytes.HasPrefix(data, []byte("GIF8")) {
		img, err := gif.Decode(bytes.NewReader(data))
		return img, "gif", err
	}
	return image.Decode(bytes.NewReader(data))
}

// Fit returns src scaled so its width is at most maxWidth. Smaller images
// are returned unchanged.
func Fit(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth || w == 0 {
		return src
	}

	newH := int(float64(h) * float64(maxWidth) / float64(w))
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
