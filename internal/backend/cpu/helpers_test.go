package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/internal/tensor"
)

func rawF32(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	if len(data) > 0 {
		require.Len(t, data, shape.NumElements())
		copy(r.AsFloat32(), data)
	}
	return r
}

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}
