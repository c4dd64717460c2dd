package cpu

import (
	"fmt"

	"github.com/born-ml/brats/internal/parallel"
	"github.com/born-ml/brats/internal/tensor"
)

// ConvTranspose2D performs a 2D transposed convolution without padding.
//
// Input:  [N, C_in, H, W]
// Kernel: [C_in, C_out, K_h, K_w]
// Output: [N, C_out, (H-1)*stride + K_h, (W-1)*stride + K_w]
//
// Every input pixel scatters a K_h x K_w patch, scaled by the pixel value, into
// the output. With K = stride = 2 the patches tile the output exactly, which is
// how the decoder doubles spatial resolution.
func (cpu *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride int) *tensor.RawTensor {
	require4D("conv_transpose2d", "input", input)
	require4D("conv_transpose2d", "kernel", kernel)
	requireFloat32("conv_transpose2d", input, kernel)

	is, ks := input.Shape(), kernel.Shape()
	n, cIn, h, w := is[0], is[1], is[2], is[3]
	kcIn, cOut, kh, kw := ks[0], ks[1], ks[2], ks[3]

	if cIn != kcIn {
		panic(fmt.Sprintf("conv_transpose2d: input channels %d != kernel channels %d", cIn, kcIn))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv_transpose2d: invalid stride %d", stride))
	}

	hOut := (h-1)*stride + kh
	wOut := (w-1)*stride + kw
	out := cpu.alloc("conv_transpose2d", tensor.Shape{n, cOut, hOut, wOut}, tensor.Float32)
	src, weights, dst := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	inPlane := h * w
	outPlane := hOut * wOut
	kPlane := kh * kw

	parallel.ForBatch(n, cOut, func(b, co int) {
		acc := dst[(b*cOut+co)*outPlane : (b*cOut+co+1)*outPlane]
		for ci := 0; ci < cIn; ci++ {
			x := src[(b*cIn+ci)*inPlane : (b*cIn+ci+1)*inPlane]
			k := weights[(ci*cOut+co)*kPlane : (ci*cOut+co+1)*kPlane]
			for ky := 0; ky < kh; ky++ {
				for kx := 0; kx < kw; kx++ {
					wv := k[ky*kw+kx]
					if wv == 0 {
						continue
					}
					for iy := 0; iy < h; iy++ {
						row := acc[(iy*stride+ky)*wOut:]
						xRow := x[iy*w : (iy+1)*w]
						for ix, v := range xRow {
							row[ix*stride+kx] += wv * v
						}
					}
				}
			}
		}
	}, cpu.coarse)

	return out
}
