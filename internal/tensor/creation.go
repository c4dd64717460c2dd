package tensor

import "math/rand"

// Zeros returns a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Full returns a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Ones returns a float32 tensor of ones.
func Ones[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return Full[float32](shape, 1, b)
}

// Uniform returns a float32 tensor with values drawn from U(low, high).
// A nil rng uses the package-level math/rand source.
func Uniform[B Backend](shape Shape, low, high float32, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	data := t.Data()
	span := high - low
	for i := range data {
		var u float32
		if rng != nil {
			u = rng.Float32()
		} else {
			u = rand.Float32() //nolint:gosec // G404: weight init and synthetic data are not security sensitive
		}
		data[i] = low + u*span
	}
	return t
}

// Randn returns a float32 tensor with values drawn from N(0, 1).
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	data := t.Data()
	for i := range data {
		if rng != nil {
			data[i] = float32(rng.NormFloat64())
		} else {
			data[i] = float32(rand.NormFloat64()) //nolint:gosec // G404: not security sensitive
		}
	}
	return t
}
