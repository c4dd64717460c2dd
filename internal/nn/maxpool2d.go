package nn

import (
	"fmt"

	"github.com/born-ml/brats/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2, backend)
//	output := pool.Forward(input) // [N, 16, 64, 64] -> [N, 16, 32, 32]
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool2D creates a 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}

	return &MaxPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		backend:    backend,
	}
}

// Forward performs the forward pass.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	require4D("maxpool2d", input.Shape())
	return tensor.New[float32, B](m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride), m.backend)
}

// Parameters returns an empty slice.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// StateDict returns an empty map.
func (m *MaxPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (m *MaxPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}

// ComputeOutputSize returns [out_height, out_width] for an input size.
func (m *MaxPool2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH-m.kernelSize)/m.stride + 1
	outW := (inputW-m.kernelSize)/m.stride + 1
	return [2]int{outH, outW}
}
