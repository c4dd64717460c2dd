package cpu

import (
	"fmt"

	"github.com/born-ml/brats/internal/parallel"
	"github.com/born-ml/brats/internal/tensor"
)

// Conv2D performs 2D cross-correlation (the deep-learning "convolution").
//
// Input:  [N, C_in, H, W]
// Kernel: [C_out, C_in, K_h, K_w]
// Output: [N, C_out, H_out, W_out] where
//
//	H_out = (H + 2*padding - K_h) / stride + 1
//	W_out = (W + 2*padding - K_w) / stride + 1
//
// Each image is unrolled once with im2col into a [C_in*K_h*K_w, H_out*W_out]
// matrix; output channels are then computed in parallel as rows of
// kernel x columns.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	require4D("conv2d", "input", input)
	require4D("conv2d", "kernel", kernel)
	requireFloat32("conv2d", input, kernel)

	is, ks := input.Shape(), kernel.Shape()
	n, cIn, h, w := is[0], is[1], is[2], is[3]
	cOut, kcIn, kh, kw := ks[0], ks[1], ks[2], ks[3]

	if cIn != kcIn {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, kcIn))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d or padding %d", stride, padding))
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions %dx%d (input %dx%d, kernel %dx%d, stride %d, padding %d)",
			hOut, wOut, h, w, kh, kw, stride, padding))
	}

	out := cpu.alloc("conv2d", tensor.Shape{n, cOut, hOut, wOut}, tensor.Float32)
	src, weights, dst := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	g := convGeom{c: cIn, h: h, w: w, kh: kh, kw: kw, hOut: hOut, wOut: wOut, stride: stride, padding: padding}
	rows := cIn * kh * kw
	plane := hOut * wOut
	cols := make([]float32, rows*plane)

	for b := 0; b < n; b++ {
		im2col(cols, src[b*cIn*h*w:(b+1)*cIn*h*w], g)
		outImage := dst[b*cOut*plane : (b+1)*cOut*plane]

		parallel.For(cOut, func(co int) {
			acc := outImage[co*plane : (co+1)*plane]
			kernelRow := weights[co*rows : (co+1)*rows]
			for r, wv := range kernelRow {
				if wv == 0 {
					continue
				}
				col := cols[r*plane : (r+1)*plane]
				for p, v := range col {
					acc[p] += wv * v
				}
			}
		}, cpu.coarse)
	}

	return out
}

type convGeom struct {
	c, h, w         int
	kh, kw          int
	hOut, wOut      int
	stride, padding int
}

// im2col unrolls one [C, H, W] image into cols laid out as
// [C*K_h*K_w, H_out*W_out]. Positions that fall into the zero padding stay 0.
func im2col(cols, image []float32, g convGeom) {
	plane := g.hOut * g.wOut
	row := 0
	for c := 0; c < g.c; c++ {
		channel := image[c*g.h*g.w : (c+1)*g.h*g.w]
		for ky := 0; ky < g.kh; ky++ {
			for kx := 0; kx < g.kw; kx++ {
				dst := cols[row*plane : (row+1)*plane]
				for oy := 0; oy < g.hOut; oy++ {
					iy := oy*g.stride - g.padding + ky
					line := dst[oy*g.wOut : (oy+1)*g.wOut]
					if iy < 0 || iy >= g.h {
						clear(line)
						continue
					}
					srcRow := channel[iy*g.w : (iy+1)*g.w]
					for ox := range line {
						ix := ox*g.stride - g.padding + kx
						if ix < 0 || ix >= g.w {
							line[ox] = 0
						} else {
							line[ox] = srcRow[ix]
						}
					}
				}
				row++
			}
		}
	}
}
