// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/brats/internal/tensor"

// Backend is the kernel set a Tensor dispatches to.
//
// Implementations:
//   - backend/cpu: pure Go, im2col convolutions, goroutine fan-out per feature map
//
// Kernels allocate new outputs and panic on shape or dtype mismatches.
type Backend = tensor.Backend
