package tensor

import "fmt"

// Cat concatenates tensors along dim. Negative dims count from the end.
//
// All tensors must agree on every other dimension:
//
//	up := ...   // [N, 64, 16, 16]
//	skip := ... // [N, 64, 16, 16]
//	x := tensor.Cat([]*tensor.Tensor[float32, B]{up, skip}, 1) // [N, 128, 16, 16]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}
	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	backend := tensors[0].backend
	return New[T, B](backend.Cat(raws, dim), backend)
}

// Stack joins equally shaped tensors along a new leading dimension.
func Stack[T DType, B Backend](tensors []*Tensor[T, B]) (*Tensor[T, B], error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("stack: at least one tensor required")
	}

	first := tensors[0].Shape()
	expanded := make([]*Tensor[T, B], len(tensors))
	for i, t := range tensors {
		if !t.Shape().Equal(first) {
			return nil, fmt.Errorf("stack: tensor %d has shape %v, expected %v", i, t.Shape(), first)
		}
		expanded[i] = t.Reshape(append([]int{1}, first...)...)
	}
	if len(expanded) == 1 {
		return expanded[0], nil
	}
	return Cat(expanded, 0), nil
}
