package model

import (
	"fmt"
	"strings"
)

type DType string

const Float32 DType = "float32"

// Tensor is a float32 buffer with an explicit shape.
type Tensor struct {
	DType DType
	Shape []int64
	Data  []float32
}

// NewTensor checks that len(data) equals the product of shape.
func NewTensor(shape []int64, data []float32) (*Tensor, error) {
	n, err := ShapeSize(shape)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("tensor %s needs %d elements, got %d", FormatShape(shape), n, len(data))
	}
	s := make([]int64, len(shape))
	copy(s, shape)
	return &Tensor{DType: Float32, Shape: s, Data: data}, nil
}

// ZeroTensor allocates a tensor of the given shape.
func ZeroTensor(shape []int64) (*Tensor, error) {
	n, err := ShapeSize(shape)
	if err != nil {
		return nil, err
	}
	return NewTensor(shape, make([]float32, n))
}

// ShapeSize returns the element count of shape. Every dimension must be positive.
func ShapeSize(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("empty shape")
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dimension %d in shape %s", d, FormatShape(shape))
		}
		n *= d
	}
	return n, nil
}

func FormatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const (
	// ImageSize is the edge length of the square model input.
	ImageSize = 224
	Channels  = 3
)

// InputShape is the NHWC layout every preprocessed tensor has.
func InputShape() []int64 {
	return []int64{1, ImageSize, ImageSize, Channels}
}
