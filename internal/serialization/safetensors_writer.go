package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/born-ml/brats/internal/tensor"
)

// SafeTensorsWriter writes tensors in safetensors format.
type SafeTensorsWriter struct {
	file   *os.File
	closed bool
}

// NewSafeTensorsWriter creates path, truncating an existing file.
func NewSafeTensorsWriter(path string) (*SafeTensorsWriter, error) {
	//nolint:gosec // G304: output paths come from the caller by design
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &SafeTensorsWriter{file: file}, nil
}

// WriteSafeTensors writes tensors and metadata to path.
// Tensors are laid out contiguously in alphabetical order by name.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	writer, err := NewSafeTensorsWriter(path)
	if err != nil {
		return err
	}

	if err := writer.WriteTensors(tensors, metadata); err != nil {
		_ = writer.Close() // Best effort close; the write error wins
		return err
	}
	return writer.Close()
}

// WriteTensors writes the header followed by every tensor's bytes.
func (w *SafeTensorsWriter) WriteTensors(tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := dtypeToSafeTensors(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		size := int64(raw.ByteSize())
		header[name] = SafeTensorInfo{
			DType:       dtype,
			Shape:       raw.Shape().Clone(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w.file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		if _, err := w.file.Write(tensors[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the writer and the underlying file.
func (w *SafeTensorsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

func dtypeToSafeTensors(dt tensor.DataType) (SafeTensorsDType, error) {
	switch dt {
	case tensor.Float32:
		return SafeTensorsF32, nil
	case tensor.Float64:
		return SafeTensorsF64, nil
	case tensor.Int32:
		return SafeTensorsI32, nil
	case tensor.Int64:
		return SafeTensorsI64, nil
	case tensor.Uint8:
		return SafeTensorsU8, nil
	case tensor.Bool:
		return SafeTensorsBool, nil
	default:
		return "", fmt.Errorf("%w %s", ErrUnsupportedDType, dt)
	}
}
