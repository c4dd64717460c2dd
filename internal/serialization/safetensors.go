package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/x448/float16"

	"github.com/born-ml/brats/internal/tensor"
)

// SafeTensorsDType names an element type in a safetensors header.
type SafeTensorsDType string

// Supported SafeTensors dtypes.
const (
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsI64  SafeTensorsDType = "I64"
	SafeTensorsI32  SafeTensorsDType = "I32"
	SafeTensorsI16  SafeTensorsDType = "I16"
	SafeTensorsI8   SafeTensorsDType = "I8"
	SafeTensorsU8   SafeTensorsDType = "U8"
	SafeTensorsBool SafeTensorsDType = "BOOL"
)

// Size returns the element width in bytes, or 0 for an unknown dtype.
func (d SafeTensorsDType) Size() int {
	switch d {
	case SafeTensorsF64, SafeTensorsI64:
		return 8
	case SafeTensorsF32, SafeTensorsI32:
		return 4
	case SafeTensorsF16, SafeTensorsBF16, SafeTensorsI16:
		return 2
	case SafeTensorsI8, SafeTensorsU8, SafeTensorsBool:
		return 1
	default:
		return 0
	}
}

// SafeTensorInfo describes a tensor in a safetensors header.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end) relative to the data section
}

// SafeTensorsHeader is the JSON header of a safetensors file.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

// UnmarshalJSON splits "__metadata__" from the per-tensor entries.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// SafeTensorsReader reads tensors from a safetensors file.
// The header is parsed and validated on open; tensor data is read on demand.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64 // Offset where tensor data starts
}

// NewSafeTensorsReader opens path and validates its header against the file size.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: sample paths come from the caller by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newSafeTensorsReader(file)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func newSafeTensorsReader(file *os.File) (*SafeTensorsReader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, &ValidationError{Err: ErrHeaderTooLarge, Details: fmt.Sprintf("%d bytes", headerSize)}
	}
	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize
	if dataOffset > stat.Size() {
		return nil, &ValidationError{
			Err:     ErrOutOfBounds,
			Details: fmt.Sprintf("header size %d exceeds file size %d", headerSize, stat.Size()),
		}
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	if err := validateHeader(&header, stat.Size()-dataOffset); err != nil {
		return nil, err
	}

	return &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: dataOffset,
	}, nil
}

func validateHeader(h *SafeTensorsHeader, dataSize int64) error {
	metas := make([]TensorMeta, 0, len(h.Tensors))
	for name, info := range h.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		elemSize := info.DType.Size()
		if elemSize == 0 {
			return fmt.Errorf("tensor %q: %w %q", name, ErrUnsupportedDType, info.DType)
		}
		shape := tensor.Shape(info.Shape)
		if err := shape.Validate(); err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		nbytes, err := shape.ByteSize(elemSize)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}

		size := info.DataOffsets[1] - info.DataOffsets[0]
		if want := int64(nbytes); size >= 0 && size != want {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("%d bytes for %s%v, expected %d", size, info.DType, info.Shape, want),
			}
		}
		metas = append(metas, TensorMeta{Name: name, Offset: info.DataOffsets[0], Size: size})
	}
	return ValidateTensorOffsets(metas, dataSize)
}

// Close closes the underlying file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the "__metadata__" map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the tensor names in sorted order.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns the header entry of a tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingArray, name)
	}
	return &info, nil
}

// ReadTensorData reads the raw bytes of a tensor.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	return data, nil
}

// ReadTensor decodes a tensor into a RawTensor.
//
// F64, F32, I64, I32, U8 and BOOL map directly. F16 and BF16 widen to Float32;
// I16 and I8 widen to Int32.
func (r *SafeTensorsReader) ReadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := decodeSafeTensor(info.DType, tensor.Shape(info.Shape), data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

func decodeSafeTensor(dtype SafeTensorsDType, shape tensor.Shape, data []byte) (*tensor.RawTensor, error) {
	direct := func(dt tensor.DataType) (*tensor.RawTensor, error) {
		return tensor.RawFromBytes(data, shape, dt, tensor.CPU)
	}

	switch dtype {
	case SafeTensorsF64:
		return direct(tensor.Float64)
	case SafeTensorsF32:
		return direct(tensor.Float32)
	case SafeTensorsI64:
		return direct(tensor.Int64)
	case SafeTensorsI32:
		return direct(tensor.Int32)
	case SafeTensorsU8:
		return direct(tensor.Uint8)
	case SafeTensorsBool:
		return direct(tensor.Bool)
	}

	var out *tensor.RawTensor
	var err error
	switch dtype {
	case SafeTensorsF16, SafeTensorsBF16:
		out, err = tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	case SafeTensorsI16, SafeTensorsI8:
		out, err = tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedDType, dtype)
	}
	if err != nil {
		return nil, err
	}

	switch dtype {
	case SafeTensorsF16:
		dst := out.AsFloat32()
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
	case SafeTensorsBF16:
		dst := out.AsFloat32()
		for i := range dst {
			dst[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(data[2*i:])) << 16)
		}
	case SafeTensorsI16:
		dst := out.AsInt32()
		for i := range dst {
			dst[i] = int32(int16(binary.LittleEndian.Uint16(data[2*i:]))) //nolint:gosec // two's complement reinterpretation
		}
	case SafeTensorsI8:
		dst := out.AsInt32()
		for i := range dst {
			dst[i] = int32(int8(data[i])) //nolint:gosec // two's complement reinterpretation
		}
	}
	return out, nil
}
