// Package nn implements the convolutional building blocks of the segmentation network.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight tensors owned by a module
//   - Conv2D, ConvTranspose2D: Convolution and learned 2x upsampling
//   - BatchNorm2D: Per-channel normalization with running statistics
//   - MaxPool2D, ReLU: Parameter-free layers
//   - Sequential: Container for stacking layers
//
// Layers compute forward passes only. Parameters are plain tensors that an
// external training procedure may overwrite through LoadStateDict.
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/brats/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build larger architectures:
//
//	block := nn.NewSequential[B](
//	    nn.NewConv2D(4, 16, 3, 3, 1, 1, false, backend),
//	    nn.NewBatchNorm2D(16, 1e-5, 0.1, backend),
//	    nn.NewReLU[B](),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	// Shape errors panic with an "op: message" string.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all parameters of this module, including nested ones.
	// Parameter-free modules return an empty slice.
	Parameters() []*Parameter[B]

	// StateDict returns parameters and buffers keyed by name
	// ("weight", "bias", "running_mean", "0.weight" for nested modules).
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies matching entries into the module.
	// Missing keys or shape mismatches are errors.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// ModeSetter is implemented by modules whose forward pass differs between
// training and evaluation.
type ModeSetter interface {
	SetTraining(training bool)
}

// SetTraining switches m into training (true) or evaluation (false) mode.
// Modules without a mode are left untouched.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if ms, ok := any(m).(ModeSetter); ok {
		ms.SetTraining(training)
	}
}

// NumParameters returns the total element count of params.
func NumParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}

// WithPrefix returns a copy of stateDict with every key prefixed by "prefix.".
func WithPrefix(prefix string, stateDict map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(stateDict))
	for k, v := range stateDict {
		out[prefix+"."+k] = v
	}
	return out
}

// SubDict returns the entries of stateDict under "prefix.", with the prefix removed.
func SubDict(prefix string, stateDict map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	p := prefix + "."
	out := make(map[string]*tensor.RawTensor)
	for k, v := range stateDict {
		if rest, ok := strings.CutPrefix(k, p); ok {
			out[rest] = v
		}
	}
	return out
}

// copyInto loads src into dst after checking shape and dtype.
func copyInto(name string, dst, src *tensor.RawTensor) error {
	if src == nil {
		return fmt.Errorf("missing %q", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%q: shape %v, expected %v", name, src.Shape(), dst.Shape())
	}
	if src.DType() != dst.DType() {
		return fmt.Errorf("%q: dtype %s, expected %s", name, src.DType(), dst.DType())
	}
	copy(dst.Data(), src.Data())
	return nil
}

func require4D(op string, shape tensor.Shape) {
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD %v", op, len(shape), shape))
	}
}
