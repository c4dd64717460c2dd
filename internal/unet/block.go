package unet

import (
	"github.com/born-ml/brats/internal/nn"
	"github.com/born-ml/brats/internal/tensor"
)

// DoubleConv builds the repeated stage block:
//
//	Conv3x3(pad 1, no bias) -> BatchNorm -> ReLU -> Conv3x3(pad 1, no bias) -> BatchNorm -> ReLU
//
// Spatial size is preserved; channels go from in to out.
func DoubleConv[B tensor.Backend](in, out int, cfg Config, backend B, opts ...nn.InitOption) *nn.Sequential[B] {
	return nn.NewSequential[B](
		nn.NewConv2D(in, out, 3, 3, 1, 1, false, backend, opts...),
		nn.NewBatchNorm2D(out, cfg.BatchNormEps, cfg.BatchNormMomentum, backend),
		nn.NewReLU[B](),
		nn.NewConv2D(out, out, 3, 3, 1, 1, false, backend, opts...),
		nn.NewBatchNorm2D(out, cfg.BatchNormEps, cfg.BatchNormMomentum, backend),
		nn.NewReLU[B](),
	)
}
