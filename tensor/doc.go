// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the brats module.
//
// # Overview
//
// Tensors carry the MRI slices from the loader into the network:
//   - Generic type-safe tensors (Tensor[T, B]) over an untyped RawTensor
//   - NumPy-style broadcasting for Add and Mul
//   - Shape operations (Reshape, Transpose, Cat, Stack) used for
//     channel-first layout and batching
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/brats/backend/cpu"
//	    "github.com/born-ml/brats/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    hwc := tensor.Zeros[float32](tensor.Shape{240, 240, 4}, backend)
//	    chw := hwc.Transpose(2, 0, 1)                  // [4, 240, 240]
//	    batch, _ := tensor.Stack([]*tensor.Tensor[float32, *cpu.Backend]{chw, chw}) // [2, 4, 240, 240]
//	    _ = batch
//	}
//
// # Supported Data Types
//
// float32, float64, int32, int64, uint8 and bool. Network kernels operate on
// float32; Cast converts stored samples of any other type.
package tensor
