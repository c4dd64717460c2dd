package tensor

import (
	"fmt"
	"unsafe"
)

// Device identifies where a tensor's memory lives.
type Device int

// Known devices.
const (
	CPU Device = iota
)

// String returns the device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the untyped storage behind every Tensor.
//
// Data is a contiguous row-major byte buffer. Backends read and write it through
// the typed As* views.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	size, err := shape.ByteSize(dtype.Size())
	if err != nil {
		return nil, err
	}

	return &RawTensor{
		data:   make([]byte, size),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// RawFromBytes wraps an existing little-endian buffer without copying it.
// The buffer length must match shape and dtype exactly.
func RawFromBytes(data []byte, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want, err := shape.ByteSize(dtype.Size())
	if err != nil {
		return nil, err
	}
	if len(data) != want {
		return nil, fmt.Errorf("shape %v of %s requires %d bytes, got %d", shape, dtype, want, len(data))
	}

	return &RawTensor{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape. Callers must not modify it.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns row-major element strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the runtime element type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the device tag.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the element count.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the buffer size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the underlying bytes. Writes are visible to the tensor.
func (r *RawTensor) Data() []byte {
	return r.data
}

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dt))
	}
}

// AsFloat32 views the buffer as []float32. Panics on a dtype mismatch.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	//nolint:gosec // zero-copy view, length derived from the validated shape
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// AsFloat64 views the buffer as []float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	//nolint:gosec // zero-copy view, length derived from the validated shape
	return unsafe.Slice((*float64)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// AsInt32 views the buffer as []int32.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	//nolint:gosec // zero-copy view, length derived from the validated shape
	return unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// AsInt64 views the buffer as []int64.
func (r *RawTensor) AsInt64() []int64 {
	r.mustBe(Int64)
	//nolint:gosec // zero-copy view, length derived from the validated shape
	return unsafe.Slice((*int64)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// AsUint8 views the buffer as []uint8.
func (r *RawTensor) AsUint8() []uint8 {
	r.mustBe(Uint8)
	return r.data
}

// AsBool views the buffer as []bool.
func (r *RawTensor) AsBool() []bool {
	r.mustBe(Bool)
	//nolint:gosec // zero-copy view, one byte per element
	return unsafe.Slice((*bool)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// WithShape returns a tensor sharing this buffer under a new shape of equal size.
func (r *RawTensor) WithShape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v (%d elements) as %v (%d elements)",
			r.shape, r.NumElements(), shape, shape.NumElements())
	}
	return RawFromBytes(r.data, shape, r.dtype, r.device)
}
