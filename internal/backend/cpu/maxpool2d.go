package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/brats/internal/parallel"
	"github.com/born-ml/brats/internal/tensor"
)

// MaxPool2D takes the maximum over kernelSize x kernelSize windows.
//
// Input:  [N, C, H, W]
// Output: [N, C, (H-kernelSize)/stride+1, (W-kernelSize)/stride+1]
//
// Trailing rows or columns that do not fill a window are dropped, so a 2x2
// stride-2 pool over an odd dimension loses its last line.
//
//	[[ 1,  2,  3,  4],
//	 [ 5,  6,  7,  8],   2x2, stride 2   [[ 6,  8],
//	 [ 9, 10, 11, 12],  ------------->    [14, 16]]
//	 [13, 14, 15, 16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	require4D("maxpool2d", "input", input)
	requireFloat32("maxpool2d", input)

	s := input.Shape()
	n, c, h, w := s[0], s[1], s[2], s[3]

	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d or stride %d", kernelSize, stride))
	}
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, h, w))
	}

	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1
	out := cpu.alloc("maxpool2d", tensor.Shape{n, c, hOut, wOut}, tensor.Float32)
	src, dst := input.AsFloat32(), out.AsFloat32()

	negInf := float32(math.Inf(-1))
	parallel.For(n*c, func(k int) {
		plane := src[k*h*w : (k+1)*h*w]
		outPlane := dst[k*hOut*wOut : (k+1)*hOut*wOut]
		for oy := 0; oy < hOut; oy++ {
			for ox := 0; ox < wOut; ox++ {
				best := negInf
				for ky := 0; ky < kernelSize; ky++ {
					row := plane[(oy*stride+ky)*w:]
					for kx := 0; kx < kernelSize; kx++ {
						if v := row[ox*stride+kx]; v > best {
							best = v
						}
					}
				}
				outPlane[oy*wOut+ox] = best
			}
		}
	}, cpu.coarse)

	return out
}
