// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/backend/cpu"
	"github.com/born-ml/brats/dataset"
	"github.com/born-ml/brats/tensor"
)

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()

	image, err := tensor.NewRaw(tensor.Shape{8, 8, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for i := range image.AsFloat32() {
		image.AsFloat32()[i] = float32(i)
	}
	mask, err := tensor.NewRaw(tensor.Shape{8, 8, 3}, tensor.Uint8, tensor.CPU)
	require.NoError(t, err)

	require.NoError(t, dataset.WriteSample(filepath.Join(dir, "a.npz"), image, mask, nil))
	require.NoError(t, dataset.WriteSample(filepath.Join(dir, "b.safetensors"), image, mask, nil))

	paths, err := dataset.Discover(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	ds := dataset.New(paths, cpu.New())
	images, masks, err := ds.GetBatch([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, dataset.ImageChannels, 8, 8}, images.Shape())
	assert.Equal(t, tensor.Shape{2, dataset.MaskChannels, 8, 8}, masks.Shape())

	_, _, err = ds.Get(2)
	assert.ErrorIs(t, err, dataset.ErrIndexOutOfRange)

	_, err = dataset.ReadSample(filepath.Join(dir, "c.h5"))
	assert.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}
