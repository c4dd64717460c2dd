// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/brats/backend/cpu"
	"github.com/born-ml/brats/nn"
	"github.com/born-ml/brats/tensor"
)

func TestModuleInterface(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name   string
		module nn.Module[*cpu.Backend]
		want   tensor.Shape
	}{
		{"Conv2D", nn.NewConv2D(4, 8, 3, 3, 1, 1, false, backend, nn.WithRand(rng)), tensor.Shape{2, 8, 8, 8}},
		{"ConvTranspose2D", nn.NewConvTranspose2D(4, 2, 2, 2, true, backend), tensor.Shape{2, 2, 16, 16}},
		{"BatchNorm2D", nn.NewBatchNorm2D(4, 1e-5, 0.1, backend), tensor.Shape{2, 4, 8, 8}},
		{"MaxPool2D", nn.NewMaxPool2D(2, 2, backend), tensor.Shape{2, 4, 4, 4}},
		{"ReLU", nn.NewReLU[*cpu.Backend](), tensor.Shape{2, 4, 8, 8}},
		{
			"Sequential",
			nn.NewSequential[*cpu.Backend](
				nn.NewConv2D(4, 6, 3, 3, 1, 1, false, backend),
				nn.NewBatchNorm2D(6, 1e-5, 0.1, backend),
				nn.NewReLU[*cpu.Backend](),
			),
			tensor.Shape{2, 6, 8, 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tensor.Randn(tensor.Shape{2, 4, 8, 8}, rng, backend)
			nn.SetTraining(tt.module, false)
			out := tt.module.Forward(input)
			assert.Equal(t, tt.want, out.Shape())

			sd := tt.module.StateDict()
			assert.NoError(t, tt.module.LoadStateDict(sd))
		})
	}
}

func TestCatAlongChannels(t *testing.T) {
	backend := cpu.New()
	a := nn.Zeros(tensor.Shape{1, 2, 4, 4}, backend)
	b := nn.Ones(tensor.Shape{1, 3, 4, 4}, backend)

	out := nn.Cat(a, b)
	assert.Equal(t, tensor.Shape{1, 5, 4, 4}, out.Shape())
	assert.Equal(t, float32(0), out.At(0, 1, 3, 3))
	assert.Equal(t, float32(1), out.At(0, 2, 0, 0))
}
