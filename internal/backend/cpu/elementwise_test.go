package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/internal/tensor"
)

func TestAdd_SameShape(t *testing.T) {
	backend := New()
	a := rawF32(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := rawF32(t, tensor.Shape{2, 2}, 10, 20, 30, 40)

	out := backend.Add(a, b)

	assert.Equal(t, []float32{11, 22, 33, 44}, out.AsFloat32())
}

// TestAdd_ChannelBias broadcasts a [1, C, 1, 1] bias over [N, C, H, W].
func TestAdd_ChannelBias(t *testing.T) {
	backend := New()
	x := rawF32(t, tensor.Shape{1, 2, 1, 2}, 1, 1, 1, 1)
	bias := rawF32(t, tensor.Shape{1, 2, 1, 1}, 10, 20)

	out := backend.Add(x, bias)

	require.Equal(t, tensor.Shape{1, 2, 1, 2}, out.Shape())
	assert.Equal(t, []float32{11, 11, 21, 21}, out.AsFloat32())
}

func TestMul_RankBroadcast(t *testing.T) {
	backend := New()
	x := rawF32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	scale := rawF32(t, tensor.Shape{3}, 1, 10, 100)

	out := backend.Mul(x, scale)

	require.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{1, 20, 300, 4, 50, 600}, out.AsFloat32())
}

func TestAdd_IncompatiblePanics(t *testing.T) {
	backend := New()
	a := rawF32(t, tensor.Shape{2, 3})
	b := rawF32(t, tensor.Shape{2, 4})

	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestReLU(t *testing.T) {
	backend := New()
	x := rawF32(t, tensor.Shape{4}, -2, -0.5, 0, 3)

	out := backend.ReLU(x)

	assert.Equal(t, []float32{0, 0, 0, 3}, out.AsFloat32())
	assert.Equal(t, []float32{-2, -0.5, 0, 3}, x.AsFloat32(), "input must not change")
}
