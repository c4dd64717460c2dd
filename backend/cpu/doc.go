// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col algorithm for convolutions
//   - Transposed convolution, max pooling and batch normalization kernels
//   - One goroutine per feature-map chunk, sized from the detected CPU topology
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/brats/backend/cpu"
//	    "github.com/born-ml/brats/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New(cpu.WithWorkers(4))
//	    x := tensor.Zeros[float32](tensor.Shape{1, 4, 64, 64}, backend)
//	    _ = x.ReLU()
//	    fmt.Println(cpu.DetectFeatures())
//	}
package cpu
