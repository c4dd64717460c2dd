// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/brats/internal/tensor"
)

// DType is a constraint for tensor element types.
type DType = tensor.DType

// DataType is the runtime element type of a RawTensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device identifies where tensor memory lives.
type Device = tensor.Device

// CPU is the host memory device.
const CPU Device = tensor.CPU

// Shape lists tensor dimensions, outermost first.
// Example: Shape{4, 240, 240} is a channel-first 4-modality slice.
type Shape = tensor.Shape

// Tensor is a generic type-safe tensor.
//
// T is the element type and B the backend that executes its operations.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 4, 64, 64}, backend)
//	y := x.ReLU()
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// New wraps raw without copying. The raw dtype must match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// FromSlice copies data into a new tensor of the given shape.
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Full creates a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Ones creates a float32 tensor of ones.
func Ones[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return tensor.Ones(shape, b)
}

// Uniform draws float32 values from U(low, high). A nil rng uses math/rand.
func Uniform[B Backend](shape Shape, low, high float32, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Uniform(shape, low, high, rng, b)
}

// Randn draws float32 values from N(0, 1). A nil rng uses math/rand.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Randn(shape, rng, b)
}

// Cat concatenates tensors along dim.
//
//	x := tensor.Cat([]*tensor.Tensor[float32, B]{up, skip}, 1) // channels
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}

// Stack joins equally shaped tensors along a new leading dimension.
func Stack[T DType, B Backend](tensors []*Tensor[T, B]) (*Tensor[T, B], error) {
	return tensor.Stack(tensors)
}

// Cast converts t to element type U.
//
//	f := tensor.Cast[float32](maskUint8)
func Cast[U DType, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	return tensor.Cast[U](t)
}
