package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrUnsupportedDType  = errors.New("unsupported data type")
	ErrMissingArray      = errors.New("array not found in sample file")
	ErrOffsetOverlap     = errors.New("tensor offsets overlap")
	ErrOutOfBounds       = errors.New("tensor extends beyond data section")
	ErrNegativeOffset    = errors.New("negative offset or size")
	ErrSizeMismatch      = errors.New("tensor byte size does not match shape and dtype")
	ErrValueRange        = errors.New("value does not fit the widened dtype")
	ErrTooManyTensors    = errors.New("too many tensors in file")
	ErrInvalidTensorName = errors.New("invalid tensor name")
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
)

// ValidationError provides detailed information about a malformed file.
// It unwraps to one of the sentinel errors above.
type ValidationError struct {
	Err     error  // Sentinel describing the failure class
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Err, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
