package cpu

import (
	"fmt"

	"github.com/born-ml/brats/internal/tensor"
)

// Cast converts x to dtype. Float to integer conversion truncates toward zero;
// any non-zero value becomes true when casting to Bool.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	out := cpu.alloc("cast", x.Shape(), dtype)
	n := x.NumElements()

	// Widen every source through float64, which is exact for all supported
	// types except int64 values beyond 2^53.
	var read func(i int) float64
	switch x.DType() {
	case tensor.Float32:
		s := x.AsFloat32()
		read = func(i int) float64 { return float64(s[i]) }
	case tensor.Float64:
		s := x.AsFloat64()
		read = func(i int) float64 { return s[i] }
	case tensor.Int32:
		s := x.AsInt32()
		read = func(i int) float64 { return float64(s[i]) }
	case tensor.Int64:
		s := x.AsInt64()
		if dtype == tensor.Int32 {
			d := out.AsInt32()
			for i := range n {
				d[i] = int32(s[i]) //nolint:gosec // narrowing is the caller's request
			}
			return out
		}
		read = func(i int) float64 { return float64(s[i]) }
	case tensor.Uint8:
		s := x.AsUint8()
		read = func(i int) float64 { return float64(s[i]) }
	case tensor.Bool:
		s := x.AsBool()
		read = func(i int) float64 {
			if s[i] {
				return 1
			}
			return 0
		}
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", x.DType()))
	}

	switch dtype {
	case tensor.Float32:
		d := out.AsFloat32()
		for i := range n {
			d[i] = float32(read(i))
		}
	case tensor.Float64:
		d := out.AsFloat64()
		for i := range n {
			d[i] = read(i)
		}
	case tensor.Int32:
		d := out.AsInt32()
		for i := range n {
			d[i] = int32(read(i))
		}
	case tensor.Int64:
		d := out.AsInt64()
		for i := range n {
			d[i] = int64(read(i))
		}
	case tensor.Uint8:
		d := out.AsUint8()
		for i := range n {
			d[i] = uint8(read(i))
		}
	case tensor.Bool:
		d := out.AsBool()
		for i := range n {
			d[i] = read(i) != 0
		}
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", dtype))
	}
	return out
}
