// Package unet implements a lean three-level U-Net for multi-class 2D brain
// tumor segmentation.
//
// The network maps a [N, 4, H, W] batch of MRI slices (T1, T1Gd, T2, T2-FLAIR)
// to [N, 3, H, W] raw logits for the tumor subregions (NEC/NET, ED, ET).
// H and W must be divisible by 8 because the encoder halves resolution three times.
package unet

import (
	"errors"
	"fmt"
)

// Input validation errors returned by ValidateInput and Run.
var (
	ErrInputRank     = errors.New("input must be 4D [N, C, H, W]")
	ErrInputChannels = errors.New("input channel count does not match the network")
	ErrSpatialSize   = errors.New("input height and width must be positive multiples of 8")
	ErrSingleValue   = errors.New("training mode needs more than one bottleneck value per channel")
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid unet config")

// Config holds the network hyperparameters.
type Config struct {
	InChannels        int     // Image channels (MRI modalities).
	OutChannels       int     // Segmentation classes.
	Features          int     // Width F of the first encoder stage; stages use F, 2F, 4F, 8F.
	BatchNormEps      float32 // Added to the variance before the square root.
	BatchNormMomentum float32 // Running statistic update factor.
}

// DefaultConfig returns 4 input channels, 3 output classes and 16 base features.
func DefaultConfig() Config {
	return Config{
		InChannels:        4,
		OutChannels:       3,
		Features:          16,
		BatchNormEps:      1e-5,
		BatchNormMomentum: 0.1,
	}
}

// Validate checks that every field is in range.
func (c Config) Validate() error {
	switch {
	case c.InChannels <= 0:
		return fmt.Errorf("%w: in_channels must be positive, got %d", ErrInvalidConfig, c.InChannels)
	case c.OutChannels <= 0:
		return fmt.Errorf("%w: out_channels must be positive, got %d", ErrInvalidConfig, c.OutChannels)
	case c.Features <= 0:
		return fmt.Errorf("%w: features must be positive, got %d", ErrInvalidConfig, c.Features)
	case c.BatchNormEps <= 0:
		return fmt.Errorf("%w: batchnorm eps must be positive, got %g", ErrInvalidConfig, c.BatchNormEps)
	case c.BatchNormMomentum < 0 || c.BatchNormMomentum > 1:
		return fmt.Errorf("%w: batchnorm momentum must be in [0, 1], got %g", ErrInvalidConfig, c.BatchNormMomentum)
	}
	return nil
}

// StageWidths returns the channel widths of the three encoder stages and the
// bottleneck: F, 2F, 4F, 8F.
func (c Config) StageWidths() [4]int {
	f := c.Features
	return [4]int{f, 2 * f, 4 * f, 8 * f}
}
