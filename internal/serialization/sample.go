package serialization

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/brats/internal/tensor"
)

// Array names inside a sample file.
const (
	ImageKey = "image"
	MaskKey  = "mask"
)

// Format is a sample container format.
type Format int

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatSafeTensors
	FormatNPZ
)

// String returns the format's file extension without the dot.
func (f Format) String() string {
	switch f {
	case FormatSafeTensors:
		return "safetensors"
	case FormatNPZ:
		return "npz"
	default:
		return "unknown"
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + f.String()
}

// ParseFormat maps "safetensors" or "npz" (case-insensitive, optional leading
// dot) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "safetensors":
		return FormatSafeTensors, nil
	case "npz":
		return FormatNPZ, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatUnknown, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return f, nil
}

// Sample is one stored slice: an [H, W, C] image, an [H, W, K] mask and
// free-form string metadata. NPZ files carry no metadata.
type Sample struct {
	Image    *tensor.RawTensor
	Mask     *tensor.RawTensor
	Metadata map[string]string
}

// ReadSample reads the "image" and "mask" arrays from path.
// Shapes are returned as stored; layout checks belong to the caller.
func ReadSample(path string) (*Sample, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var s *Sample
	switch format {
	case FormatSafeTensors:
		s, err = readSafeTensorsSample(path)
	case FormatNPZ:
		s, err = readNPZSample(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func readSafeTensorsSample(path string) (*Sample, error) {
	r, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	image, err := r.ReadTensor(ImageKey)
	if err != nil {
		return nil, err
	}
	mask, err := r.ReadTensor(MaskKey)
	if err != nil {
		return nil, err
	}
	return &Sample{Image: image, Mask: mask, Metadata: r.Metadata()}, nil
}

func readNPZSample(path string) (*Sample, error) {
	r, err := NewNPZReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	image, err := r.ReadArray(ImageKey)
	if err != nil {
		return nil, err
	}
	mask, err := r.ReadArray(MaskKey)
	if err != nil {
		return nil, err
	}
	return &Sample{Image: image, Mask: mask}, nil
}

// WriteSample stores image and mask at path in the format named by its
// extension. Metadata is dropped for NPZ.
func WriteSample(path string, image, mask *tensor.RawTensor, metadata map[string]string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	if image == nil || mask == nil {
		return fmt.Errorf("%s: %w: image and mask are required", path, ErrMissingArray)
	}

	arrays := map[string]*tensor.RawTensor{ImageKey: image, MaskKey: mask}
	switch format {
	case FormatSafeTensors:
		err = WriteSafeTensors(path, arrays, metadata)
	case FormatNPZ:
		err = WriteNPZ(path, arrays)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
