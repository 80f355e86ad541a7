// Package imaging converts between encoded photos, decoded images and the
// float32 CHW tensors exchanged with the inference backend.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	// Register decoders for formats Telegram clients may upload as documents.
	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned when an upload cannot be parsed as an image.
	ErrDecode = errors.New("imaging: cannot decode image")
	// ErrShape is returned when a tensor does not describe a 3-channel image.
	ErrShape = errors.New("imaging: unexpected tensor shape")
)

// Format names an output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// MaxDimension bounds the height and width of an image built from a tensor.
const MaxDimension = 4096

// MaxUploadBytes bounds the size of a photo accepted for decoding.
const MaxUploadBytes = 20 << 20

// Decode parses an encoded image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds limit", ErrDecode, len(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrDecode)
	}
	return img, nil
}

// Resize scales img to exactly size x size using Catmull-Rom resampling.
func Resize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToCHW resizes img to size x size and returns its pixels as a planar
// RGB float32 slice of length 3*size*size. Each channel value in [0,1] is
// passed through norm.
func ToCHW(img image.Image, size int, norm func(float32) float32) []float32 {
	rgba := Resize(img, size)
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := rgba.PixOffset(x, y)
			p := y*size + x
			out[p] = norm(float32(rgba.Pix[i]) / 255)
			out[plane+p] = norm(float32(rgba.Pix[i+1]) / 255)
			out[2*plane+p] = norm(float32(rgba.Pix[i+2]) / 255)
		}
	}
	return out
}

// FromCHW builds an opaque RGBA image from a planar tensor. shape must be
// [3,H,W] or [1,3,H,W]. denorm maps a raw tensor value to the 0..255 range;
// results are clipped before conversion.
func FromCHW(data []float32, shape []int64, denorm func(float32) float32) (*image.RGBA, error) {
	if len(shape) == 4 {
		if shape[0] != 1 {
			return nil, fmt.Errorf("%w: batch of %d", ErrShape, shape[0])
		}
		shape = shape[1:]
	}
	if len(shape) != 3 || shape[0] != 3 || shape[1] <= 0 || shape[2] <= 0 ||
		shape[1] > MaxDimension || shape[2] > MaxDimension {
		return nil, fmt.Errorf("%w: %v", ErrShape, shape)
	}
	h, w := int(shape[1]), int(shape[2])
	plane := h * w
	if len(data) != 3*plane {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShape, len(data), h, w)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				R: clip(denorm(data[p])),
				G: clip(denorm(data[plane+p])),
				B: clip(denorm(data[2*plane+p])),
				A: 255,
			})
		}
	}
	return img, nil
}

// Encode renders img in the requested format.
func Encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case FormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("imaging: unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("imaging: encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func clip(v float32) uint8 {
	switch {
	case v != v, v <= 0: // NaN counts as black
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
