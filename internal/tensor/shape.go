package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeOverflow reports a shape whose element or byte count does not fit in an int.
var ErrShapeOverflow = errors.New("shape size overflows int")

// Shape lists tensor dimensions, outermost first.
type Shape []int

// NumElements returns the product of all dimensions (1 for a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate returns an error if any dimension is not positive or the element
// count overflows int.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	_, err := s.ByteSize(1)
	return err
}

// ByteSize returns NumElements()*elemSize, failing with ErrShapeOverflow
// instead of wrapping. Dimensions must already be positive.
func (s Shape) ByteSize(elemSize int) (int, error) {
	acc := max(elemSize, 1)
	for _, dim := range s {
		if dim > math.MaxInt/acc {
			return 0, fmt.Errorf("%w: %v x %d bytes", ErrShapeOverflow, s, elemSize)
		}
		acc *= dim
	}
	if elemSize == 0 {
		return 0, nil
	}
	return acc, nil
}

// Equal reports whether two shapes have the same rank and dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// ComputeStrides returns row-major (C order) element strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// BroadcastShapes applies NumPy broadcasting rules to a and b.
//
// Dimensions are aligned from the right; a pair is compatible when equal or when
// either side is 1. The boolean result reports whether any dimension had to be
// stretched.
//
//	(2, 8, 4, 4) + (1, 8, 1, 1) -> (2, 8, 4, 4), true
//	(3, 4) + (3, 5)             -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	stretched := false

	for i := 0; i < rank; i++ {
		da, db := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			db = b[j]
		}

		switch {
		case da == db:
			out[rank-1-i] = da
		case da == 1:
			out[rank-1-i] = db
			stretched = true
		case db == 1:
			out[rank-1-i] = da
			stretched = true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v are not broadcastable (dim %d: %d vs %d)",
				a, b, rank-1-i, da, db)
		}
	}

	if len(a) != len(b) {
		stretched = true
	}
	return out, stretched, nil
}
