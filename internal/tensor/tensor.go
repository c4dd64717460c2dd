package tensor

import "fmt"

// Tensor is a typed view over a RawTensor bound to a backend.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 4, 64, 64}, backend)
//	y := x.ReLU()
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps raw without copying. The raw dtype must match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	if want := dataTypeOf[T](); raw.DType() != want {
		panic(fmt.Sprintf("tensor: raw dtype %s does not match %s", raw.DType(), want))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the runtime element type.
func (t *Tensor[T, B]) DType() DataType {
	return t.raw.DType()
}

// Device returns the device tag.
func (t *Tensor[T, B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the element count.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying storage.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the backend the tensor dispatches to.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Data returns a zero-copy typed slice over the tensor memory.
func (t *Tensor[T, B]) Data() []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case float64:
		return any(t.raw.AsFloat64()).([]T)
	case int32:
		return any(t.raw.AsInt32()).([]T)
	case int64:
		return any(t.raw.AsInt64()).([]T)
	case uint8:
		return any(t.raw.AsUint8()).([]T)
	case bool:
		return any(t.raw.AsBool()).([]T)
	default:
		panic("unsupported type")
	}
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	off := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		off += idx * strides[i]
	}
	return off
}

// At returns the element at the given indices.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set stores value at the given indices.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

// Clone returns a deep copy bound to the same backend.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw.Clone(), backend: t.backend}
}

// String describes dtype, shape and device.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}
