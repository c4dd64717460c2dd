// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/brats/internal/backend/cpu"
	"github.com/born-ml/brats/tensor"
)

// Backend is the CPU implementation of tensor.Backend.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option = internalcpu.Option

// Features describes the host processor.
type Features = internalcpu.Features

// New creates a CPU backend using all detected hardware threads.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers caps the goroutines a single kernel call may use.
// n <= 0 keeps the detected default.
func WithWorkers(n int) Option {
	return internalcpu.WithWorkers(n)
}

// DetectFeatures reports the CPU brand, core counts and SIMD extensions.
func DetectFeatures() Features {
	return internalcpu.DetectFeatures()
}
