// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the convolutional building blocks of the segmentation
// network.
//
// # Overview
//
// This package contains:
//   - Layers: Conv2D, ConvTranspose2D, BatchNorm2D, MaxPool2D
//   - Activations: ReLU
//   - Utilities: Sequential, Module interface, Parameter, Cat
//   - Initialization: KaimingUniform, Xavier, Zeros, Ones
//
// There is no autograd: parameters are plain tensors that an external
// training procedure may overwrite through LoadStateDict.
//
// # Basic Usage
//
//	backend := cpu.New()
//	block := nn.NewSequential[*cpu.Backend](
//	    nn.NewConv2D(4, 16, 3, 3, 1, 1, false, backend),
//	    nn.NewBatchNorm2D(16, 1e-5, 0.1, backend),
//	    nn.NewReLU[*cpu.Backend](),
//	)
//	nn.SetTraining[*cpu.Backend](block, false)
//	y := block.Forward(x) // [N, 16, H, W]
package nn
