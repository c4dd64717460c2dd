package cpu

import (
	"fmt"

	"github.com/born-ml/brats/internal/tensor"
)

// Cat concatenates tensors along dim. Works for every dtype since it only
// moves bytes.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	first := tensors[0]
	rank := len(first.Shape())
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("cat: dim %d out of range for %dD tensors", dim, rank))
	}

	outShape := first.Shape().Clone()
	outShape[dim] = 0
	for i, t := range tensors {
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), first.DType()))
		}
		s := t.Shape()
		if len(s) != rank {
			panic(fmt.Sprintf("cat: tensor %d has rank %d, expected %d", i, len(s), rank))
		}
		for d := range s {
			if d != dim && s[d] != first.Shape()[d] {
				panic(fmt.Sprintf("cat: tensor %d shape %v mismatches %v outside dim %d", i, s, first.Shape(), dim))
			}
		}
		outShape[dim] += s[dim]
	}

	out := cpu.alloc("cat", outShape, first.DType())
	dst := out.Data()

	// Outer = product of dims before dim; each tensor contributes one
	// contiguous block of dim*inner elements per outer index.
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= outShape[d]
	}
	elem := first.DType().Size()
	inner := elem
	for d := dim + 1; d < rank; d++ {
		inner *= outShape[d]
	}

	offset := 0
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			block := t.Shape()[dim] * inner
			copy(dst[offset:offset+block], t.Data()[o*block:(o+1)*block])
			offset += block
		}
	}
	return out
}

// Transpose permutes dimensions according to axes. With no axes the
// dimension order is reversed. The result is contiguous.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	s := x.Shape()
	rank := len(s)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: %d axes given for %dD tensor", len(axes), rank))
	}
	axes = append([]int(nil), axes...)
	seen := make([]bool, rank)
	for i, a := range axes {
		if a < 0 {
			a += rank
			axes[i] = a
		}
		if a < 0 || a >= rank || seen[a] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[a] = true
	}

	outShape := make(tensor.Shape, rank)
	for i, a := range axes {
		outShape[i] = s[a]
	}
	out := cpu.alloc("transpose", outShape, x.DType())
	if rank == 0 || x.NumElements() == 0 {
		copy(out.Data(), x.Data())
		return out
	}

	inStrides := x.Strides()
	// srcStrides[i] is the input stride for output dim i.
	srcStrides := make([]int, rank)
	for i, a := range axes {
		srcStrides[i] = inStrides[a]
	}

	elem := x.DType().Size()
	src, dst := x.Data(), out.Data()
	index := make([]int, rank)
	si := 0
	for di := 0; di < out.NumElements(); di++ {
		copy(dst[di*elem:(di+1)*elem], src[si*elem:(si+1)*elem])
		for d := rank - 1; d >= 0; d-- {
			index[d]++
			si += srcStrides[d]
			if index[d] < outShape[d] {
				break
			}
			si -= srcStrides[d] * outShape[d]
			index[d] = 0
		}
	}
	return out
}

// Reshape returns a view of x with a new shape. A single -1 entry is inferred
// from the remaining dimensions.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	resolved := shape.Clone()
	infer := -1
	known := 1
	for i, d := range resolved {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("reshape: more than one inferred dimension in %v", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v for %d elements", shape, x.NumElements()))
		}
		resolved[infer] = x.NumElements() / known
	}

	view, err := x.WithShape(resolved)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}
