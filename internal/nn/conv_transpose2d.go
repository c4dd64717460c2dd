package nn

import (
	"fmt"

	"github.com/born-ml/brats/internal/tensor"
)

// ConvTranspose2D is a learned upsampling layer (transposed convolution, no padding).
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [in_channels, out_channels, kernel, kernel]
// Output shape: [batch, out_channels, (height-1)*stride + kernel, (width-1)*stride + kernel]
//
// With kernel = stride = 2 the output is exactly twice the input resolution:
//
//	up := nn.NewConvTranspose2D(64, 32, 2, 2, true, backend)
//	y := up.Forward(x) // [N, 64, 8, 8] -> [N, 32, 16, 16]
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConvTranspose2D creates a transposed convolution layer.
//
// Weights and bias use KaimingUniform with fan_in = out_channels * kernel * kernel,
// which is dimension 1 of the weight tensor times the receptive field.
func NewConvTranspose2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride int,
	useBias bool,
	backend B,
	opts ...InitOption,
) *ConvTranspose2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv_transpose2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("conv_transpose2d: invalid kernel size %d or stride %d", kernelSize, stride))
	}

	ic := newInitConfig(opts)
	fanIn := outChannels * kernelSize * kernelSize
	weight := KaimingUniform(fanIn, tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}, ic.rng, backend)

	var bias *Parameter[B]
	if useBias {
		bias = NewParameter("bias", KaimingUniform(fanIn, tensor.Shape{outChannels}, ic.rng, backend))
	}

	return &ConvTranspose2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		useBias:     useBias,
		weight:      NewParameter("weight", weight),
		bias:        bias,
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	require4D("conv_transpose2d", inputShape)
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv_transpose2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.ConvTranspose2D(input.Raw(), c.weight.Tensor().Raw(), c.stride)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

// Parameters returns weight and, if present, bias.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns "weight" and, if present, "bias".
func (c *ConvTranspose2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict copies "weight" and, if present, "bias".
func (c *ConvTranspose2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, p := range c.Parameters() {
		if err := p.Load(stateDict[p.Name()]); err != nil {
			return fmt.Errorf("conv_transpose2d: %w", err)
		}
	}
	return nil
}

// String returns a string representation of the layer.
func (c *ConvTranspose2D[B]) String() string {
	return fmt.Sprintf("ConvTranspose2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.useBias)
}

// InChannels returns the number of input channels.
func (c *ConvTranspose2D[B]) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *ConvTranspose2D[B]) OutChannels() int {
	return c.outChannels
}

// Weight returns the kernel parameter.
func (c *ConvTranspose2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil when the layer has none.
func (c *ConvTranspose2D[B]) Bias() *Parameter[B] {
	return c.bias
}
