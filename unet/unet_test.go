// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package unet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/backend/cpu"
	"github.com/born-ml/brats/nn"
	"github.com/born-ml/brats/tensor"
	"github.com/born-ml/brats/unet"
)

func TestPublicForward(t *testing.T) {
	backend := cpu.New()
	cfg := unet.DefaultConfig()
	cfg.Features = 2

	model := unet.MustNew(cfg, backend, unet.WithSeed(1))
	var _ nn.Module[*cpu.Backend] = model
	model.Eval()

	x := tensor.Zeros[float32](tensor.Shape{1, 4, 16, 16}, backend)
	out, err := model.Run(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 16, 16}, out.Shape())

	_, err = model.Run(tensor.Zeros[float32](tensor.Shape{1, 4, 12, 12}, backend))
	assert.ErrorIs(t, err, unet.ErrSpatialSize)

	block := unet.DoubleConv(4, 2, cfg, backend)
	assert.Equal(t, 6, block.Len())
}
