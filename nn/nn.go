// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/brats/internal/nn"
	"github.com/born-ml/brats/tensor"
)

// Module is implemented by every layer.
type Module[B tensor.Backend] = nn.Module[B]

// ModeSetter is implemented by modules that behave differently in training
// and evaluation.
type ModeSetter = nn.ModeSetter

// SetTraining switches m (and its children) between training and evaluation.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	nn.SetTraining(m, training)
}

// Parameter is a named weight tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// NumParameters sums the element counts of params.
func NumParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.NumParameters(params)
}

// Layers

// Conv2D is a 2D convolution with optional bias.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a 2D convolutional layer.
//
//	conv := nn.NewConv2D(4, 16, 3, 3, 1, 1, false, backend) // 3x3, stride 1, padding 1, no bias
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
	opts ...InitOption,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend, opts...)
}

// ConvTranspose2D is a transposed 2D convolution used for upsampling.
type ConvTranspose2D[B tensor.Backend] = nn.ConvTranspose2D[B]

// NewConvTranspose2D creates a transposed convolution layer.
//
//	up := nn.NewConvTranspose2D(64, 32, 2, 2, true, backend) // doubles H and W
func NewConvTranspose2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride int,
	useBias bool,
	backend B,
	opts ...InitOption,
) *ConvTranspose2D[B] {
	return nn.NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, useBias, backend, opts...)
}

// BatchNorm2D normalizes each channel of [N, C, H, W].
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch normalization layer in training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, eps, momentum float32, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, eps, momentum, backend)
}

// MaxPool2D is a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, backend)
}

// Activations

// ReLU is the rectified linear unit.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Containers

// Sequential runs modules in order.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a container of modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Cat concatenates [N, C, H, W] tensors along the channel dimension.
func Cat[B tensor.Backend](xs ...*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.Cat(xs...)
}

// Initialization

// InitOption configures weight initialization.
type InitOption = nn.InitOption

// WithRand draws initial weights from rng.
func WithRand(rng *rand.Rand) InitOption {
	return nn.WithRand(rng)
}

// KaimingUniform draws from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.KaimingUniform(fanIn, shape, rng, backend)
}

// Xavier draws from the Glorot uniform distribution.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, rng, backend)
}

// Zeros returns a zero-filled float32 tensor.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones returns a float32 tensor of ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}
