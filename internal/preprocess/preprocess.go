// Package preprocess turns decoded bitmaps into the NHWC float tensor the
// classifier model expects.
package preprocess

import (
	"image"
	"image/color"
	"math"

	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

const size = model.ImageSize

// Background fills any part of the frame the scaled image does not cover.
var Background = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// Placement is where the scaled image lands on the square frame.
// Negative offsets mean the image overflows and is clipped.
type Placement struct {
	Width   float64
	Height  float64
	OffsetX float64
	OffsetY float64
}

// Fit scales the shorter side to the frame and centers the longer one.
func Fit(width, height int) Placement {
	aspect := float64(width) / float64(height)
	if aspect > 1 {
		w := size * aspect
		return Placement{Width: w, Height: size, OffsetX: (size - w) / 2}
	}
	h := size / aspect
	return Placement{Width: size, Height: h, OffsetY: (size - h) / 2}
}

// Preprocessor scales with bilinear interpolation. The zero value is ready
// to use.
type Preprocessor struct{}

func New() *Preprocessor {
	return &Preprocessor{}
}

// Preprocess renders img onto a gray 224x224 frame (center crop to square)
// and returns it as a [1,224,224,3] tensor with channels scaled to [0,1].
func (p *Preprocessor) Preprocess(img model.DecodedImage) (*model.Tensor, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	frame := p.render(img)
	return toTensor(frame)
}

func (p *Preprocessor) render(img model.DecodedImage) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	pl := Fit(img.Width, img.Height)
	dw := int(math.Round(pl.Width))
	dh := int(math.Round(pl.Height))
	ox := center(dw)
	oy := center(dh)

	dst := image.Rect(ox, oy, ox+dw, oy+dh).Intersect(frame.Bounds())
	if dst.Empty() {
		return frame
	}

	// Only the part of the source that ends up inside the frame is scaled.
	sx := float64(img.Width) / float64(dw)
	sy := float64(img.Height) / float64(dh)
	src := image.Rect(
		int(math.Round(float64(dst.Min.X-ox)*sx)),
		int(math.Round(float64(dst.Min.Y-oy)*sy)),
		int(math.Round(float64(dst.Max.X-ox)*sx)),
		int(math.Round(float64(dst.Max.Y-oy)*sy)),
	)
	src = clampRect(src, img.Width, img.Height)

	visible := imaging.Crop(img.NRGBA(), src)
	scaled := resize.Resize(uint(dst.Dx()), uint(dst.Dy()), visible, resize.Bilinear)
	draw.Draw(frame, dst, scaled, scaled.Bounds().Min, draw.Over)
	return frame
}

// center returns the offset that centers n pixels on the frame. An odd
// overflow leaves the extra pixel on the right or bottom.
func center(n int) int {
	if n <= size {
		return (size - n) / 2
	}
	return -((n - size) / 2)
}

func clampRect(r image.Rectangle, w, h int) image.Rectangle {
	r = r.Intersect(image.Rect(0, 0, w, h))
	if r.Dx() == 0 {
		if r.Min.X >= w {
			r.Min.X = w - 1
		}
		r.Max.X = r.Min.X + 1
	}
	if r.Dy() == 0 {
		if r.Min.Y >= h {
			r.Min.Y = h - 1
		}
		r.Max.Y = r.Min.Y + 1
	}
	return r
}

func toTensor(frame *image.RGBA) (*model.Tensor, error) {
	data := make([]float32, size*size*model.Channels)
	for h := 0; h < size; h++ {
		for w := 0; w < size; w++ {
			src := frame.PixOffset(w, h)
			dst := (h*size + w) * model.Channels
			data[dst] = scale(frame.Pix[src])
			data[dst+1] = scale(frame.Pix[src+1])
			data[dst+2] = scale(frame.Pix[src+2])
		}
	}
	return model.NewTensor(model.InputShape(), data)
}

func scale(v uint8) float32 {
	return float32(float64(v) / 255.0)
}
