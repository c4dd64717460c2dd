package nn

import (
	"fmt"

	"github.com/born-ml/brats/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Example:
//
//	// 3x3 "same" convolution without bias, as used inside a double-conv block
//	conv := nn.NewConv2D(4, 16, 3, 3, 1, 1, false, backend)
//	output := conv.Forward(input) // [N, 16, H, W]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int
	useBias     bool

	weight *Parameter[B] // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a 2D convolutional layer.
//
// Weights and bias are drawn from KaimingUniform with
// fan_in = in_channels * kernel_h * kernel_w.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
	opts ...InitOption,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	ic := newInitConfig(opts)
	fanIn := inChannels * kernelH * kernelW
	weight := KaimingUniform(fanIn, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, ic.rng, backend)

	var bias *Parameter[B]
	if useBias {
		bias = NewParameter("bias", KaimingUniform(fanIn, tensor.Shape{outChannels}, ic.rng, backend))
	}

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		useBias:     useBias,
		weight:      NewParameter("weight", weight),
		bias:        bias,
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	require4D("conv2d", inputShape)
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

// Parameters returns weight and, if present, bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns "weight" and, if present, "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict copies "weight" and, if present, "bias".
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, p := range c.Parameters() {
		if err := p.Load(stateDict[p.Name()]); err != nil {
			return fmt.Errorf("conv2d: %w", err)
		}
	}
	return nil
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding, c.useBias)
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil when the layer has none.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// ComputeOutputSize returns [out_height, out_width] for an input size.
func (c *Conv2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}
