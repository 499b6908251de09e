package model

import "context"

// Engine runs a model over named tensors. Implementations expose exactly one
// input slot and one output slot.
type Engine interface {
	InputName() string
	OutputName() string
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Close() error
}
