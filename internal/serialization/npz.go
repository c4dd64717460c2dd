package serialization

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"unsafe"

	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"

	"github.com/born-ml/brats/internal/tensor"
)

const npyExt = ".npy"

// NPZReader reads named arrays from a NumPy .npz archive.
type NPZReader struct {
	r *npz.Reader
}

// NewNPZReader opens an .npz archive.
func NewNPZReader(path string) (*NPZReader, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open npz: %w", err)
	}
	return &NPZReader{r: r}, nil
}

// Close closes the archive.
func (r *NPZReader) Close() error {
	return r.r.Close()
}

// ArrayNames returns the array names without the ".npy" suffix, sorted.
func (r *NPZReader) ArrayNames() []string {
	keys := r.r.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimSuffix(k, npyExt))
	}
	sort.Strings(names)
	return names
}

func (r *NPZReader) lookup(name string) (string, *npy.Header) {
	for _, key := range []string{name + npyExt, name} {
		if hdr := r.r.Header(key); hdr != nil {
			return key, hdr
		}
	}
	return "", nil
}

// ReadArray decodes the array stored as name or name+".npy".
//
// float32, float64, int32, int64, uint8 and bool map directly. int8, int16
// and uint16 widen to Int32; uint32 and uint64 widen to Int64, and uint64
// values above MaxInt64 fail with ErrValueRange. Fortran-ordered arrays are
// rejected.
func (r *NPZReader) ReadArray(name string) (*tensor.RawTensor, error) {
	key, hdr := r.lookup(name)
	if hdr == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingArray, name)
	}
	if hdr.Descr.Fortran {
		return nil, fmt.Errorf("array %s: %w: fortran order", name, ErrUnsupportedDType)
	}

	shape := tensor.Shape(append([]int(nil), hdr.Descr.Shape...))
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	raw, err := r.decode(key, hdr.Descr.Type, shape)
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	return raw, nil
}

func (r *NPZReader) decode(key, descr string, shape tensor.Shape) (*tensor.RawTensor, error) {
	// Byte order is handled by npyio; only kind and width matter here.
	kind := strings.TrimLeft(descr, "<>|=")

	switch kind {
	case "f4":
		return readDirect[float32](r.r, key, shape, tensor.Float32)
	case "f8":
		return readDirect[float64](r.r, key, shape, tensor.Float64)
	case "i4":
		return readDirect[int32](r.r, key, shape, tensor.Int32)
	case "i8":
		return readDirect[int64](r.r, key, shape, tensor.Int64)
	case "u1":
		return readDirect[uint8](r.r, key, shape, tensor.Uint8)
	case "b1":
		return readDirect[bool](r.r, key, shape, tensor.Bool)
	case "i1":
		return readWidened[int8, int32](r.r, key, shape, tensor.Int32)
	case "i2":
		return readWidened[int16, int32](r.r, key, shape, tensor.Int32)
	case "u2":
		return readWidened[uint16, int32](r.r, key, shape, tensor.Int32)
	case "u4":
		return readWidened[uint32, int64](r.r, key, shape, tensor.Int64)
	case "u8":
		return readUint64(r.r, key, shape)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedDType, descr)
	}
}

func readDirect[T tensor.DType](r *npz.Reader, key string, shape tensor.Shape, dt tensor.DataType) (*tensor.RawTensor, error) {
	var data []T
	if err := r.Read(key, &data); err != nil {
		return nil, err
	}
	out, err := tensor.NewRaw(shape, dt, tensor.CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrSizeMismatch, len(data), shape)
	}
	copy(unsafe.Slice((*T)(unsafe.Pointer(&out.Data()[0])), len(data)), data)
	return out, nil
}

type narrowInt interface {
	~int8 | ~int16 | ~uint16 | ~uint32
}

func readWidened[S narrowInt, D int32 | int64](r *npz.Reader, key string, shape tensor.Shape, dt tensor.DataType) (*tensor.RawTensor, error) {
	var data []S
	if err := r.Read(key, &data); err != nil {
		return nil, err
	}
	out, err := tensor.NewRaw(shape, dt, tensor.CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrSizeMismatch, len(data), shape)
	}
	dst := unsafe.Slice((*D)(unsafe.Pointer(&out.Data()[0])), len(data))
	for i, v := range data {
		dst[i] = D(v)
	}
	return out, nil
}

func readUint64(r *npz.Reader, key string, shape tensor.Shape) (*tensor.RawTensor, error) {
	var data []uint64
	if err := r.Read(key, &data); err != nil {
		return nil, err
	}
	out, err := tensor.NewRaw(shape, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrSizeMismatch, len(data), shape)
	}
	dst := out.AsInt64()
	for i, v := range data {
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint64 %d at index %d", ErrValueRange, v, i)
		}
		dst[i] = int64(v)
	}
	return out, nil
}

// WriteNPZ writes each tensor as name+".npy" into a new archive at path.
// Arrays are stored in C order with their full shape.
func WriteNPZ(path string, arrays map[string]*tensor.RawTensor) error {
	w, err := npz.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create npz: %w", err)
	}

	names := make([]string, 0, len(arrays))
	for name := range arrays {
		if err := ValidateTensorName(name); err != nil {
			_ = w.Close()
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, err := shapedArray(arrays[name])
		if err != nil {
			_ = w.Close()
			return fmt.Errorf("array %s: %w", name, err)
		}
		if err := w.Write(name+npyExt, v); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to write array %s: %w", name, err)
		}
	}
	return w.Close()
}

// shapedArray copies raw into a nested Go array value ([d0][d1]...T) so npyio
// records the full shape in the .npy header.
func shapedArray(raw *tensor.RawTensor) (any, error) {
	elem, err := goElemType(raw.DType())
	if err != nil {
		return nil, err
	}

	typ := elem
	shape := raw.Shape()
	for i := len(shape) - 1; i >= 0; i-- {
		typ = reflect.ArrayOf(shape[i], typ)
	}

	v := reflect.New(typ)
	if n := raw.ByteSize(); n > 0 {
		copy(unsafe.Slice((*byte)(v.UnsafePointer()), n), raw.Data())
	}
	return v.Elem().Interface(), nil
}

func goElemType(dt tensor.DataType) (reflect.Type, error) {
	switch dt {
	case tensor.Float32:
		return reflect.TypeOf(float32(0)), nil
	case tensor.Float64:
		return reflect.TypeOf(float64(0)), nil
	case tensor.Int32:
		return reflect.TypeOf(int32(0)), nil
	case tensor.Int64:
		return reflect.TypeOf(int64(0)), nil
	case tensor.Uint8:
		return reflect.TypeOf(uint8(0)), nil
	case tensor.Bool:
		return reflect.TypeOf(false), nil
	default:
		return nil, fmt.Errorf("%w %s", ErrUnsupportedDType, dt)
	}
}
