package tensor

// Backend is the kernel set a Tensor dispatches to.
//
// Kernels allocate and return new tensors; inputs are never modified. They panic
// on programmer errors (rank, dtype or dimension mismatches) with an "op: message"
// string, the same way slice indexing panics.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// ReLU returns max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Conv2D convolves [N, C_in, H, W] with [C_out, C_in, K_h, K_w].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor

	// ConvTranspose2D applies the adjoint of Conv2D: input [N, C_in, H, W],
	// kernel [C_in, C_out, K_h, K_w], output [N, C_out, (H-1)*stride+K_h, (W-1)*stride+K_w].
	ConvTranspose2D(input, kernel *RawTensor, stride int) *RawTensor

	// MaxPool2D takes the maximum over square windows of [N, C, H, W].
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor

	// ChannelMoments returns the per-channel mean and biased variance of
	// [N, C, H, W], reduced over N, H and W. Both results have shape [C].
	ChannelMoments(input *RawTensor) (mean, variance *RawTensor)

	// BatchNorm2D computes gamma*(x-mean)/sqrt(var+eps)+beta per channel.
	BatchNorm2D(input, mean, variance, gamma, beta *RawTensor, eps float32) *RawTensor

	// Shape operations.
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor
	Reshape(x *RawTensor, shape Shape) *RawTensor

	// Cast converts element values to dtype.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	Name() string
	Device() Device
}
