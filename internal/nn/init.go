package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/brats/internal/tensor"
)

// KaimingUniform draws weights from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
//
// This is He initialization with a leaky-ReLU slope of sqrt(5), the default for
// convolution layers in common deep learning frameworks. The same bound is used
// for conv biases. A nil rng uses the package-level math/rand source.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := float32(1 / math.Sqrt(float64(fanIn)))
	return tensor.Uniform(shape, -bound, bound, rng, backend)
}

// Xavier (Glorot) initialization.
//
// Draws from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -bound, bound, rng, backend)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones(shape, backend)
}

// InitOption configures parameter initialization of a layer.
type InitOption func(*initConfig)

type initConfig struct {
	rng *rand.Rand
}

// WithRand draws initial weights from rng instead of the package-level source.
// Layers built from one seeded rng in a fixed order are reproducible.
func WithRand(rng *rand.Rand) InitOption {
	return func(c *initConfig) {
		c.rng = rng
	}
}

func newInitConfig(opts []InitOption) initConfig {
	var c initConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
