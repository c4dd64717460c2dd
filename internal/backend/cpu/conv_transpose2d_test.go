package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/internal/tensor"
)

// TestConvTranspose2D_Upsample checks that a 2x2 stride-2 kernel of ones
// replicates each pixel into a 2x2 block.
func TestConvTranspose2D_Upsample(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	kernel := rawF32(t, tensor.Shape{1, 1, 2, 2}, 1, 1, 1, 1)

	out := backend.ConvTranspose2D(input, kernel, 2)

	require.Equal(t, tensor.Shape{1, 1, 4, 4}, out.Shape())
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, out.AsFloat32())
}

func TestConvTranspose2D_KernelPattern(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 1, 1, 2}, 1, 10)
	kernel := rawF32(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)

	out := backend.ConvTranspose2D(input, kernel, 2)

	require.Equal(t, tensor.Shape{1, 1, 2, 4}, out.Shape())
	assert.Equal(t, []float32{1, 2, 10, 20, 3, 4, 30, 40}, out.AsFloat32())
}

// TestConvTranspose2D_Overlap uses stride 1 so neighbouring patches overlap
// and accumulate.
func TestConvTranspose2D_Overlap(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 1, 1, 2}, 1, 1)
	kernel := rawF32(t, tensor.Shape{1, 1, 1, 2}, 1, 1)

	out := backend.ConvTranspose2D(input, kernel, 1)

	require.Equal(t, tensor.Shape{1, 1, 1, 3}, out.Shape())
	assert.Equal(t, []float32{1, 2, 1}, out.AsFloat32())
}

// TestConvTranspose2D_Channels maps two input channels onto three output
// channels with the [C_in, C_out, K, K] kernel layout.
func TestConvTranspose2D_Channels(t *testing.T) {
	backend := New()

	input := rawF32(t, tensor.Shape{1, 2, 1, 1}, 1, 2)
	kernel := rawF32(t, tensor.Shape{2, 3, 1, 1},
		1, 0, 1, // from channel 0
		0, 1, 1) // from channel 1

	out := backend.ConvTranspose2D(input, kernel, 2)

	require.Equal(t, tensor.Shape{1, 3, 1, 1}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3}, out.AsFloat32())
}

func TestConvTranspose2D_ChannelMismatchPanics(t *testing.T) {
	backend := New()
	input := rawF32(t, tensor.Shape{1, 4, 2, 2})
	kernel := rawF32(t, tensor.Shape{2, 1, 2, 2})

	assert.Panics(t, func() { backend.ConvTranspose2D(input, kernel, 2) })
}
