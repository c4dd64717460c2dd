// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/brats/internal/tensor"
)

// RawTensor is the untyped dense buffer behind every Tensor.
//
// Most users should use Tensor[T, B]. RawTensor is what sample files decode
// into and what backends operate on.
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()
type RawTensor = tensor.RawTensor

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// RawFromBytes wraps a little-endian buffer without copying.
func RawFromBytes(data []byte, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.RawFromBytes(data, shape, dtype, device)
}
