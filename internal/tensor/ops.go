package tensor

// Add returns t + other with broadcasting.
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Mul returns t * other element-wise with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// ReLU returns max(0, t).
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
//
//	x := tensor.Zeros[float32](tensor.Shape{4, 8, 8}, backend)
//	y := x.Reshape(1, 4, 8, 8)
func (t *Tensor[T, B]) Reshape(shape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(shape)), t.backend)
}

// Transpose permutes dimensions. With no axes the order is reversed.
//
//	hwc := tensor.Zeros[float32](tensor.Shape{240, 240, 4}, backend)
//	chw := hwc.Transpose(2, 0, 1) // [4, 240, 240]
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// Cast converts t to element type U using the tensor's backend.
func Cast[U DType, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	return New[U, B](t.backend.Cast(t.raw, dataTypeOf[U]()), t.backend)
}
