package cpu

import (
	"fmt"

	"github.com/born-ml/brats/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// ReLU returns max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu", x)
	out := cpu.alloc("relu", x.Shape(), tensor.Float32)
	src, dst := x.AsFloat32(), out.AsFloat32()
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		}
	}
	return out
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)

	outShape, stretched, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	out := cpu.alloc(op, outShape, tensor.Float32)
	dst := out.AsFloat32()
	as, bs := a.AsFloat32(), b.AsFloat32()

	if !stretched {
		for i := range dst {
			dst[i] = f(as[i], bs[i])
		}
		return out
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	index := make([]int, len(outShape))
	ai, bi := 0, 0
	for i := range dst {
		dst[i] = f(as[ai], bs[bi])

		// Advance the multi-index odometer and the two source offsets together.
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if index[d] < outShape[d] {
				break
			}
			ai -= aStrides[d] * outShape[d]
			bi -= bStrides[d] * outShape[d]
			index[d] = 0
		}
	}
	return out
}

// broadcastStrides maps src strides onto out's rank; stretched dims get stride 0.
func broadcastStrides(src, out tensor.Shape) []int {
	strides := make([]int, len(out))
	srcStrides := src.ComputeStrides()
	offset := len(out) - len(src)
	for d := range out {
		j := d - offset
		if j < 0 || src[j] == 1 {
			continue
		}
		strides[d] = srcStrides[j]
	}
	return strides
}
