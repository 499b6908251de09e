package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxBytes caps how much encoded data a single image may occupy.
	DefaultMaxBytes = 20 << 20
	// DefaultMaxPixels caps width*height before any pixel is decoded.
	DefaultMaxPixels = 40_000_000
)

type Decoder struct {
	MaxBytes  int64
	MaxPixels int64
}

func NewDecoder(maxBytes, maxPixels int64) *Decoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{MaxBytes: maxBytes, MaxPixels: maxPixels}
}

// Load reads src to completion and decodes it. It returns only after every
// pixel is available. Failures wrap model.ErrInvalidImage, except a missing
// sample which wraps ErrSampleUnavailable.
func (d *Decoder) Load(ctx context.Context, src Source) (model.DecodedImage, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrSampleUnavailable) {
			return model.DecodedImage{}, err
		}
		return model.DecodedImage{}, fmt.Errorf("%w: %s: %w", model.ErrInvalidImage, src, err)
	}
	defer rc.Close()

	data, err := d.readAll(rc)
	if err != nil {
		return model.DecodedImage{}, fmt.Errorf("%w: %s: %w", model.ErrInvalidImage, src, err)
	}
	if err := ctx.Err(); err != nil {
		return model.DecodedImage{}, fmt.Errorf("%w: %s: %w", model.ErrInvalidImage, src, err)
	}
	return d.Decode(data)
}

// Decode sniffs and decodes an encoded image, applying its EXIF orientation.
func (d *Decoder) Decode(data []byte) (model.DecodedImage, error) {
	if len(data) == 0 {
		return model.DecodedImage{}, fmt.Errorf("%w: no data", model.ErrInvalidImage)
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return model.DecodedImage{}, fmt.Errorf("%w: unsupported content type %s", model.ErrInvalidImage, mtype.String())
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.DecodedImage{}, fmt.Errorf("%w: failed to decode %s: %v", model.ErrInvalidImage, mtype.String(), err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > d.maxPixels() {
		return model.DecodedImage{}, fmt.Errorf("%w: %s is %dx%d, over the %d pixel limit",
			model.ErrInvalidImage, format, cfg.Width, cfg.Height, d.maxPixels())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return model.DecodedImage{}, fmt.Errorf("%w: failed to decode %s: %v", model.ErrInvalidImage, mtype.String(), err)
	}
	return model.NewDecodedImage(imaging.Clone(img))
}

func (d *Decoder) maxPixels() int64 {
	if d.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return d.MaxPixels
}

func (d *Decoder) readAll(r io.Reader) ([]byte, error) {
	limit := d.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	return data, nil
}
