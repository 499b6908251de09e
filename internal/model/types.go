package model

import (
	"fmt"
	"image"
)

// DecodedImage is a fully decoded bitmap in row-major RGBA order,
// 4 bytes per pixel with straight alpha.
type DecodedImage struct {
	Width  int
	Height int
	Pix    []byte
}

// NewDecodedImage wraps an NRGBA bitmap without copying its pixels.
func NewDecodedImage(img *image.NRGBA) (DecodedImage, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return DecodedImage{}, fmt.Errorf("%w: empty bounds %dx%d", ErrInvalidImage, w, h)
	}
	if img.Stride == w*4 && b.Min == (image.Point{}) {
		return DecodedImage{Width: w, Height: h, Pix: img.Pix[:w*h*4]}, nil
	}
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(pix[y*w*4:(y+1)*w*4], src[:w*4])
	}
	return DecodedImage{Width: w, Height: h, Pix: pix}, nil
}

// Validate reports ErrInvalidImage for zero dimensions or a pixel buffer
// that does not match them.
func (d DecodedImage) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, d.Width, d.Height)
	}
	if len(d.Pix) != d.Width*d.Height*4 {
		return fmt.Errorf("%w: pixel buffer has %d bytes, want %d", ErrInvalidImage, len(d.Pix), d.Width*d.Height*4)
	}
	return nil
}

// NRGBA returns a view of the pixels as an image. The view shares memory.
func (d DecodedImage) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    d.Pix,
		Stride: d.Width * 4,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}
}

// ClassScore is a single ranked prediction.
type ClassScore struct {
	Index       int     `json:"index"`
	Probability float32 `json:"probability"`
	Label       string  `json:"label"`
}

// PredictionResult holds the top entries sorted by probability, highest first.
type PredictionResult []ClassScore

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type URLRequest struct {
	URL string `json:"url"`
}

type Prediction struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
	Percent     string  `json:"percent"`
}

type PredictionResponse struct {
	RequestID   string       `json:"request_id"`
	Predictions []Prediction `json:"predictions"`
}

type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}
