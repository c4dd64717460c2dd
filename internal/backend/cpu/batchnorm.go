package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/brats/internal/parallel"
	"github.com/born-ml/brats/internal/tensor"
)

// ChannelMoments returns per-channel mean and biased variance of [N, C, H, W],
// reduced over N, H and W. Accumulation is done in float64 with two passes so
// that large constant offsets do not swamp small variances.
func (cpu *CPUBackend) ChannelMoments(input *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	require4D("channel_moments", "input", input)
	requireFloat32("channel_moments", input)

	s := input.Shape()
	n, c, plane := s[0], s[1], s[2]*s[3]
	count := float64(n * plane)

	mean = cpu.alloc("channel_moments", tensor.Shape{c}, tensor.Float32)
	variance = cpu.alloc("channel_moments", tensor.Shape{c}, tensor.Float32)
	src, means, vars := input.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()

	parallel.For(c, func(ch int) {
		var sum float64
		for b := 0; b < n; b++ {
			for _, v := range src[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				sum += float64(v)
			}
		}
		mu := sum / count

		var sq float64
		for b := 0; b < n; b++ {
			for _, v := range src[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				d := float64(v) - mu
				sq += d * d
			}
		}
		means[ch] = float32(mu)
		vars[ch] = float32(sq / count)
	}, cpu.coarse)

	return mean, variance
}

// BatchNorm2D normalizes [N, C, H, W] per channel:
//
//	y = gamma * (x - mean) / sqrt(variance + eps) + beta
//
// mean, variance, gamma and beta all have shape [C].
func (cpu *CPUBackend) BatchNorm2D(input, mean, variance, gamma, beta *tensor.RawTensor, eps float32) *tensor.RawTensor {
	require4D("batchnorm2d", "input", input)
	requireFloat32("batchnorm2d", input, mean, variance, gamma, beta)

	s := input.Shape()
	n, c, plane := s[0], s[1], s[2]*s[3]
	for _, p := range []*tensor.RawTensor{mean, variance, gamma, beta} {
		if !p.Shape().Equal(tensor.Shape{c}) {
			panic(fmt.Sprintf("batchnorm2d: statistic shape %v does not match %d channels", p.Shape(), c))
		}
	}

	means, vars := mean.AsFloat32(), variance.AsFloat32()
	gammas, betas := gamma.AsFloat32(), beta.AsFloat32()
	scale := make([]float32, c)
	shift := make([]float32, c)
	for ch := 0; ch < c; ch++ {
		inv := float32(1 / math.Sqrt(float64(vars[ch])+float64(eps)))
		scale[ch] = gammas[ch] * inv
		shift[ch] = betas[ch] - means[ch]*scale[ch]
	}

	out := cpu.alloc("batchnorm2d", s, tensor.Float32)
	src, dst := input.AsFloat32(), out.AsFloat32()
	parallel.For(n*c, func(k int) {
		ch := k % c
		sc, sh := scale[ch], shift[ch]
		x := src[k*plane : (k+1)*plane]
		y := dst[k*plane : (k+1)*plane]
		for i, v := range x {
			y[i] = v*sc + sh
		}
	}, cpu.coarse)

	return out
}
