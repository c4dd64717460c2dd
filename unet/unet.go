// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package unet provides the three-level U-Net for brain tumor segmentation.
//
//	backend := cpu.New()
//	model := unet.MustNew(unet.DefaultConfig(), backend, unet.WithSeed(42))
//	model.Eval()
//	logits, err := model.Run(images) // [N, 4, H, W] -> [N, 3, H, W]
package unet

import (
	"github.com/born-ml/brats/internal/unet"
	"github.com/born-ml/brats/nn"
	"github.com/born-ml/brats/tensor"
)

// Input validation errors.
var (
	ErrInputRank     = unet.ErrInputRank
	ErrInputChannels = unet.ErrInputChannels
	ErrSpatialSize   = unet.ErrSpatialSize
	ErrSingleValue   = unet.ErrSingleValue
	ErrInvalidConfig = unet.ErrInvalidConfig
)

// Config holds the network hyperparameters.
type Config = unet.Config

// UNet is the encoder/decoder segmentation network.
type UNet[B tensor.Backend] = unet.UNet[B]

// NamedParameter pairs a parameter with its dotted path.
type NamedParameter[B tensor.Backend] = unet.NamedParameter[B]

// Option configures network construction.
type Option = unet.Option

// DefaultConfig returns 4 input channels, 3 classes and 16 base features.
func DefaultConfig() Config {
	return unet.DefaultConfig()
}

// WithSeed makes weight initialization reproducible.
func WithSeed(seed int64) Option {
	return unet.WithSeed(seed)
}

// New builds a network from cfg.
func New[B tensor.Backend](cfg Config, backend B, opts ...Option) (*UNet[B], error) {
	return unet.New(cfg, backend, opts...)
}

// MustNew is like New but panics on an invalid config.
func MustNew[B tensor.Backend](cfg Config, backend B, opts ...Option) *UNet[B] {
	return unet.MustNew(cfg, backend, opts...)
}

// DoubleConv builds the conv-BN-ReLU-conv-BN-ReLU stage block.
func DoubleConv[B tensor.Backend](in, out int, cfg Config, backend B, opts ...nn.InitOption) *nn.Sequential[B] {
	return unet.DoubleConv(in, out, cfg, backend, opts...)
}
