// Package imaging holds the pixel-level helpers shared by the pipeline:
// decoding, cropping, scaling, luma statistics and re-encoding for adapters.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode     = errors.New("cannot decode image")
	ErrEmptyImage = errors.New("image has no pixels")
	ErrTooLarge   = errors.New("image exceeds the pixel limit")
)

// DefaultMaxPixels bounds the declared size of an image before its pixels
// are allocated. Compressed formats can declare far more pixels than the
// upload size suggests.
const DefaultMaxPixels = 40_000_000

// Decode decodes JPEG, PNG, GIF, BMP or WebP bytes up to DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited reads the header first and refuses images whose width times
// height exceeds maxPixels. maxPixels <= 0 means DefaultMaxPixels.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	w, h, err := DecodeSize(data)
	if err != nil {
		return nil, "", err
	}
	if int64(w)*int64(h) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d is above %d pixels", ErrTooLarge, w, h, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}

	return img, format, nil
}

// DecodeSize reads only the header to obtain the image dimensions.
func DecodeSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Crop copies the part of img inside r into a new RGBA image anchored at
// the origin. r is clamped to the image bounds first.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Scale resizes img by factor using Catmull-Rom resampling.
func Scale(img image.Image, factor float64) *image.RGBA {
	bounds := img.Bounds()
	w := max(1, int(float64(bounds.Dx())*factor))
	h := max(1, int(float64(bounds.Dy())*factor))
	return Resize(img, w, h)
}

// Resize resamples img to exactly w x h.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Gray converts the part of img inside r to 8-bit luma (BT.601 weights).
func Gray(img image.Image, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	if r.Empty() {
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// MeanLuma returns the average luma of g in [0,255].
func MeanLuma(g *image.Gray) float64 {
	b := g.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		for _, v := range row {
			sum += float64(v)
		}
	}
	return sum / float64(n)
}

// LaplacianVariance returns the variance of the 4-neighbour Laplacian over
// the interior pixels of g. Images smaller than 3x3 yield 0.
func LaplacianVariance(g *image.Gray) float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		return float64(g.Pix[y*g.Stride+x])
	}

	var sum, sumSq float64
	count := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			sum += lap
			sumSq += lap * lap
			count++
		}
	}

	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
