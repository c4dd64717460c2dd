package nn

import (
	"github.com/born-ml/brats/internal/tensor"
)

// Parameter is a named weight tensor owned by a module.
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter wraps an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name relative to its owning layer.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Load copies raw into the parameter. Shape and dtype must match.
func (p *Parameter[B]) Load(raw *tensor.RawTensor) error {
	return copyInto(p.name, p.tensor.Raw(), raw)
}
