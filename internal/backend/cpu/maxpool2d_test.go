package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/internal/tensor"
)

func TestMaxPool2D_BasicForward(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 1, 4, 4}, seq(16)...)

	out := backend.MaxPool2D(input, 2, 2)

	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 14, 16}, out.AsFloat32())
}

func TestMaxPool2D_NegativeValues(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 1, 2, 2}, -4, -3, -2, -1)

	out := backend.MaxPool2D(input, 2, 2)

	assert.Equal(t, []float32{-1}, out.AsFloat32())
}

// TestMaxPool2D_OddSizeFloors drops the trailing row and column of a 5x5 input.
func TestMaxPool2D_OddSizeFloors(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 1, 5, 5}, seq(25)...)

	out := backend.MaxPool2D(input, 2, 2)

	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{7, 9, 17, 19}, out.AsFloat32())
}

func TestMaxPool2D_ChannelsIndependent(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 2, 2, 2}, 1, 2, 3, 4, 8, 7, 6, 5)

	out := backend.MaxPool2D(input, 2, 2)

	require.Equal(t, tensor.Shape{1, 2, 1, 1}, out.Shape())
	assert.Equal(t, []float32{4, 8}, out.AsFloat32())
}

func TestMaxPool2D_KernelTooLargePanics(t *testing.T) {
	backend := New()
	input := rawF32(t, tensor.Shape{1, 1, 1, 1})

	assert.Panics(t, func() { backend.MaxPool2D(input, 2, 2) })
}
