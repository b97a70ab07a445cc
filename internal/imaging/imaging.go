// Package imaging normalizes item photos before they are stored.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Defaults used by the zero Normalizer.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
)

// accepted lists the sniffed input types a photo may have.
var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Photo is a normalized item photo.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Normalizer bounds photo dimensions and re-encodes them as JPEG.
type Normalizer struct {
	MaxDimension int
	Quality      int
}

func (n Normalizer) maxDimension() int {
	if n.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return n.MaxDimension
}

func (n Normalizer) quality() int {
	if n.Quality <= 0 || n.Quality > 100 {
		return DefaultQuality
	}
	return n.Quality
}

// Normalize sniffs data, rejects anything but JPEG, PNG or WebP, scales the
// image down to fit MaxDimension and re-encodes it as JPEG. The client's
// declared content type is never trusted.
func (n Normalizer) Normalize(data []byte) (*Photo, error) {
	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, fmt.Errorf("unsupported image format: %s", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = scale(img, n.maxDimension())

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.quality()}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// Fit returns w and h scaled to fit within limit, preserving aspect ratio.
// Dimensions already within the limit are returned unchanged.
func Fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w > h {
		h = max(1, h*limit/w)
		w = limit
	} else {
		w = max(1, w*limit/h)
		h = limit
	}
	return w, h
}

func scale(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), limit)
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBPVP8", webp.Decode, webp.DecodeConfig)
}
